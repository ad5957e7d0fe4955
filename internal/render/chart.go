// Package render draws the forecast chart and packs it for the panel.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/i474232898/weather-display/internal/cycle"
	"github.com/i474232898/weather-display/internal/forecast"
	"github.com/i474232898/weather-display/internal/frame"
)

// Screen layout in landscape pixels.
const (
	Width   = 250
	Height  = 122
	XOffset = 40
	YOffset = 25
	Padding = 5
)

// Options configure a Chart.
type Options struct {
	Width, Height int
	// HeaderSize is the length of the palette header prepended to each
	// flushed frame.
	HeaderSize int
	// Entries is the number of forecast slots across the chart.
	Entries int
}

// Chart renders forecast samples onto a monochrome canvas.
type Chart struct {
	opts Options
	log  *slog.Logger
}

// New creates a chart renderer. Zero options take the panel defaults.
func New(opts Options, log *slog.Logger) *Chart {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = Width, Height
	}
	if opts.HeaderSize < 0 {
		opts.HeaderSize = 0
	}
	if opts.Entries <= 0 {
		opts.Entries = forecast.DefaultEntries
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chart{opts: opts, log: log}
}

// HeaderSize implements cycle.Renderer.
func (c *Chart) HeaderSize() int { return c.opts.HeaderSize }

// Render draws samples and hands the whole screen to flush as one region.
func (c *Chart) Render(ctx context.Context, samples []forecast.Sample, bounds forecast.Bounds, flush cycle.FlushFunc) error {
	canvas := c.Canvas(samples, bounds)
	if err := ctx.Err(); err != nil {
		return err
	}
	region := frame.Region{W: c.opts.Width, H: c.opts.Height}
	return flush(region, Pack(canvas, c.opts.HeaderSize))
}

// Canvas draws the forecast screen: precipitation bars, the temperature
// line, hour labels along the bottom and the temperature range on the left.
func (c *Chart) Canvas(samples []forecast.Sample, bounds forecast.Bounds) *image.Gray {
	w, h := c.opts.Width, c.opts.Height
	canvas := image.NewGray(image.Rect(0, 0, w, h))
	fill(canvas, canvas.Rect, white)

	area := image.Rect(XOffset, Padding, w-Padding, h-YOffset)
	if len(samples) > c.opts.Entries {
		samples = samples[:c.opts.Entries]
	}

	c.drawPrecip(canvas, area, samples)
	c.drawTemps(canvas, area, samples, bounds)

	slot := area.Dx() / c.opts.Entries
	for i, s := range samples {
		text(canvas, labelX(area.Min.X+i*slot, slot, s.Label), h-2, s.Label)
	}
	if bounds.Valid() {
		temperature(canvas, Padding, Padding+ascent, bounds.Max)
		temperature(canvas, Padding, h-YOffset, bounds.Min)
	}
	return canvas
}

// labelX centres label under the slot starting at x0. Labels wider than
// the slot start at its left edge.
func labelX(x0, slot int, label string) int {
	return x0 + max((slot-len(label)*glyphW)/2, 0)
}

// drawPrecip draws one half-tone bar per slot, scaled to 0-100 percent.
func (c *Chart) drawPrecip(dst *image.Gray, area image.Rectangle, samples []forecast.Sample) {
	slot := area.Dx() / c.opts.Entries
	barW := max(slot*3/5, 1)
	for i, s := range samples {
		if s.Precip <= 0 {
			continue
		}
		barH := area.Dy() * min(s.Precip, 100) / 100
		x0 := area.Min.X + i*slot + (slot-barW)/2
		dither(dst, image.Rect(x0, area.Max.Y-barH, x0+barW, area.Max.Y))
	}
}

// drawTemps plots temperatures as a line over the bounds.
func (c *Chart) drawTemps(dst *image.Gray, area image.Rectangle, samples []forecast.Sample, bounds forecast.Bounds) {
	if len(samples) == 0 {
		return
	}
	lo, hi := tempRange(bounds)

	slot := float64(area.Dx()) / float64(c.opts.Entries)
	xs := make([]float64, 0, len(samples))
	ys := make([]float64, 0, len(samples))
	for i, s := range samples {
		xs = append(xs, (float64(i)+0.5)*slot)
		ys = append(ys, s.Temp)
	}
	if len(xs) == 1 {
		// A series needs two points; draw a short flat segment.
		xs = append(xs, xs[0]+1)
		ys = append(ys, ys[0])
	}

	ch := chart.Chart{
		Width:      area.Dx(),
		Height:     area.Dy(),
		Background: chart.Style{Padding: chart.Box{Top: 1, Left: 1, Right: 1, Bottom: 1}},
		Canvas:     chart.Style{FillColor: drawing.ColorWhite},
		XAxis: chart.XAxis{
			Style: chart.Style{Hidden: true},
			Range: &chart.ContinuousRange{Min: 0, Max: float64(area.Dx())},
		},
		YAxis: chart.YAxis{
			Style: chart.Style{Hidden: true},
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: 2,
					StrokeColor: drawing.ColorBlack,
					DotWidth:    2,
					DotColor:    drawing.ColorBlack,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		c.log.Warn("temperature line not drawn", "error", err)
		return
	}
	img, err := png.Decode(&buf)
	if err != nil {
		c.log.Warn("temperature line not drawn", "error", fmt.Errorf("decode: %w", err))
		return
	}
	overlay(dst, area.Min, img)
}

// tempRange returns the y axis range for bounds, widening degenerate ones.
func tempRange(b forecast.Bounds) (lo, hi float64) {
	if !b.Valid() || math.IsInf(b.Min, 0) || math.IsInf(b.Max, 0) {
		return 0, 100
	}
	lo, hi = math.Floor(b.Min), math.Ceil(b.Max)
	if hi-lo < 1 {
		lo, hi = lo-1, hi+1
	}
	return lo, hi
}

var (
	white = color.Gray{Y: 0xFF}
	black = color.Gray{Y: 0x00}
)

func fill(dst *image.Gray, r image.Rectangle, c color.Gray) {
	r = r.Intersect(dst.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.SetGray(x, y, c)
		}
	}
}

// dither fills r with a 50% checkerboard.
func dither(dst *image.Gray, r image.Rectangle) {
	r = r.Intersect(dst.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if (x+y)%2 == 0 {
				dst.SetGray(x, y, black)
			}
		}
	}
}

// overlay copies the dark pixels of src onto dst at origin.
func overlay(dst *image.Gray, origin image.Point, src image.Image) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(src.At(x, y)).(color.Gray)
			if g.Y < 0x80 {
				p := origin.Add(image.Pt(x-b.Min.X, y-b.Min.Y))
				if p.In(dst.Rect) {
					dst.SetGray(p.X, p.Y, black)
				}
			}
		}
	}
}
