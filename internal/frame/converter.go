// Package frame converts renderer output into the raster the e-paper panel
// expects.
package frame

import (
	"errors"
	"fmt"
)

// ErrSizeMismatch means the source buffer does not hold exactly one packed
// frame for its region. It indicates a wiring bug between renderer and
// converter, never bad input data.
var ErrSizeMismatch = errors.New("frame size mismatch")

// Region is a rectangle of the screen in pixels.
type Region struct {
	X, Y int
	W, H int
}

// Stride is the number of bytes in one packed row; rows start on a byte
// boundary.
func (r Region) Stride() int {
	return (r.W + 7) / 8
}

// ByteLen is the size of a packed 1 bpp frame covering the region.
func (r Region) ByteLen() int {
	return r.Stride() * r.H
}

// Plane selects a colour layer of a multi-colour panel.
type Plane int

const (
	Black Plane = iota
	Red
)

// Bitmap is a packed, MSB-first 1 bpp raster where a set bit is ink.
type Bitmap struct {
	Region Region
	Data   []byte
}

// Converter strips the renderer's header and inverts the pixel sense. The
// renderer sets a bit for a white pixel; the panel driver sets a bit for a
// black one.
type Converter struct {
	// HeaderSize is the number of bytes the renderer prepends to each frame.
	HeaderSize int
}

// Convert returns the panel bitmap for one rendered region. px must hold
// exactly HeaderSize + region.ByteLen() bytes.
func (c Converter) Convert(region Region, px []byte) (Bitmap, error) {
	if region.W <= 0 || region.H <= 0 {
		return Bitmap{}, fmt.Errorf("%w: empty region %dx%d", ErrSizeMismatch, region.W, region.H)
	}
	want := c.HeaderSize + region.ByteLen()
	if c.HeaderSize < 0 || len(px) != want {
		return Bitmap{}, fmt.Errorf("%w: region %dx%d needs %d bytes, got %d",
			ErrSizeMismatch, region.W, region.H, want, len(px))
	}

	src := px[c.HeaderSize:]
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = ^b
	}
	return Bitmap{Region: region, Data: out}, nil
}
