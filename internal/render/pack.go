package render

import "image"

// palette is the two-entry colour table that leads every packed frame:
// index 0 black, index 1 white, each as B, G, R, A.
var palette = [8]byte{
	0x00, 0x00, 0x00, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF,
}

// Pack converts img to 1 bpp, MSB first, rows padded to whole bytes, with a
// set bit for a light pixel. The result starts with headerSize bytes holding
// as much of the palette as fits.
func Pack(img *image.Gray, headerSize int) []byte {
	b := img.Bounds()
	stride := (b.Dx() + 7) / 8
	out := make([]byte, headerSize+stride*b.Dy())
	copy(out[:headerSize], palette[:])

	px := out[headerSize:]
	for y := 0; y < b.Dy(); y++ {
		row := px[y*stride : (y+1)*stride]
		for x := 0; x < b.Dx(); x++ {
			if img.GrayAt(b.Min.X+x, b.Min.Y+y).Y >= 0x80 {
				row[x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return out
}
