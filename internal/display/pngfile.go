package display

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// PNGFile writes each committed frame to a PNG file, for running without a
// panel attached.
type PNGFile struct {
	Path string
}

// Show replaces the file atomically with img.
func (p PNGFile) Show(img *image.Gray) error {
	tmp, err := os.CreateTemp(filepath.Dir(p.Path), ".frame-*.png")
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return os.Rename(tmp.Name(), p.Path)
}
