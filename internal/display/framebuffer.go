// Package display holds the panel framebuffer and its output backends.
package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/i474232898/weather-display/internal/frame"
)

var (
	ErrBitmapSize = errors.New("bitmap size mismatch")
	// ErrPlane is returned for colour planes the panel cannot show.
	ErrPlane = errors.New("unsupported colour plane")
)

// Panel shows a committed landscape frame.
type Panel interface {
	Show(img *image.Gray) error
}

// Framebuffer is a landscape monochrome drawing buffer in front of a Panel.
type Framebuffer struct {
	buf   *image.Gray
	panel Panel
	log   *slog.Logger
}

// NewFramebuffer creates a blank w x h buffer.
func NewFramebuffer(w, h int, panel Panel, log *slog.Logger) *Framebuffer {
	if log == nil {
		log = slog.Default()
	}
	fb := &Framebuffer{buf: image.NewGray(image.Rect(0, 0, w, h)), panel: panel, log: log}
	fb.ClearBuffer()
	return fb
}

// Bounds returns the buffer size.
func (f *Framebuffer) Bounds() image.Rectangle { return f.buf.Rect }

// Image returns a copy of the buffer.
func (f *Framebuffer) Image() *image.Gray {
	img := image.NewGray(f.buf.Rect)
	copy(img.Pix, f.buf.Pix)
	return img
}

// ClearBuffer resets every pixel to paper white.
func (f *Framebuffer) ClearBuffer() {
	for i := range f.buf.Pix {
		f.buf.Pix[i] = 0xFF
	}
}

// DrawBitmap inks the set bits of a packed MSB-first bitmap at (x, y).
// Clear bits leave the buffer untouched. Pixels outside the buffer are
// clipped.
func (f *Framebuffer) DrawBitmap(x, y int, data []byte, w, h int, plane frame.Plane) error {
	if plane != frame.Black {
		return fmt.Errorf("%w: %d", ErrPlane, plane)
	}
	stride := (w + 7) / 8
	if w <= 0 || h <= 0 || len(data) != stride*h {
		return fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrBitmapSize, w, h, stride*h, len(data))
	}

	ink := color.Gray{Y: 0}
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if data[row*stride+col/8]&(0x80>>(col%8)) == 0 {
				continue
			}
			p := image.Pt(x+col, y+row)
			if p.In(f.buf.Rect) {
				f.buf.SetGray(p.X, p.Y, ink)
			}
		}
	}
	return nil
}

// Display commits the buffer to the panel.
func (f *Framebuffer) Display() error {
	if f.panel == nil {
		return nil
	}
	if err := f.panel.Show(f.Image()); err != nil {
		return fmt.Errorf("panel refresh failed: %w", err)
	}
	f.log.Debug("panel refreshed", "width", f.buf.Rect.Dx(), "height", f.buf.Rect.Dy())
	return nil
}

// Portrait rotates a landscape frame a quarter turn clockwise.
func Portrait(src *image.Gray) *image.Gray {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, sh, sw))
	for y := 0; y < sw; y++ {
		for x := 0; x < sh; x++ {
			dst.SetGray(x, y, src.GrayAt(src.Rect.Min.X+y, src.Rect.Min.Y+sh-1-x))
		}
	}
	return dst
}
