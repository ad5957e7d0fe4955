package render

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	ascent    = 11
	glyphW    = 7
	degreeGap = 1
)

// text draws s with its baseline at y.
func text(dst *image.Gray, x, y int, s string) int {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
	return d.Dot.X.Round()
}

// temperature draws a whole-degree Fahrenheit reading such as "41°F". The
// font has no degree glyph, so the ring is drawn by hand.
func temperature(dst *image.Gray, x, y int, t float64) {
	x = text(dst, x, y, fmt.Sprintf("%.0f", math.Round(t)))
	degree(dst, x+degreeGap, y-ascent+1)
	text(dst, x+degreeGap+4, y, "F")
}

// degree draws a 3x3 ring with its top-left corner at (x, y).
func degree(dst *image.Gray, x, y int) {
	for _, p := range []image.Point{{1, 0}, {0, 1}, {2, 1}, {1, 2}} {
		dst.SetGray(x+p.X, y+p.Y, black)
	}
}
