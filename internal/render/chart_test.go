package render

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-display/internal/forecast"
	"github.com/i474232898/weather-display/internal/frame"
)

func samples() []forecast.Sample {
	return []forecast.Sample{
		{Label: "9 AM", Temp: 38.5, Precip: 15},
		{Label: "12 PM", Temp: 45.0, Precip: 40},
		{Label: "3 PM", Temp: 41.2, Precip: 0},
		{Label: "6 PM", Temp: 39.9, Precip: 100},
	}
}

func newChart() *Chart {
	return New(Options{HeaderSize: 8}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func dark(img *image.Gray, r image.Rectangle) int {
	n := 0
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.GrayAt(x, y).Y < 0x80 {
				n++
			}
		}
	}
	return n
}

func TestRenderFlushesWholeScreen(t *testing.T) {
	c := newChart()
	require.Equal(t, 8, c.HeaderSize())

	var (
		calls  int
		region frame.Region
		px     []byte
	)
	err := c.Render(context.Background(), samples(), forecast.Bounds{Min: 38.5, Max: 45}, func(r frame.Region, b []byte) error {
		calls++
		region, px = r, b
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, frame.Region{W: Width, H: Height}, region)
	require.Len(t, px, 8+32*Height)
	require.Equal(t, palette[:], px[:8])

	// The packed frame must round-trip through the panel converter.
	bm, err := frame.Converter{HeaderSize: 8}.Convert(region, px)
	require.NoError(t, err)
	require.Len(t, bm.Data, region.ByteLen())
}

func TestCanvasLayout(t *testing.T) {
	c := newChart()
	img := c.Canvas(samples(), forecast.Bounds{Min: 38.5, Max: 45})

	area := image.Rect(XOffset, Padding, Width-Padding, Height-YOffset)
	require.Positive(t, dark(img, area), "chart area is empty")

	// Hour labels along the bottom strip, each inside its bar's slot.
	slot := area.Dx() / forecast.DefaultEntries
	strip := image.Rect(XOffset, Height-YOffset+1, Width, Height)
	for i := range samples() {
		cell := image.Rect(XOffset+i*slot, strip.Min.Y, XOffset+(i+1)*slot, Height)
		require.Positive(t, dark(img, cell), "label %d", i)
	}
	require.Zero(t, dark(img, image.Rect(XOffset+len(samples())*slot, strip.Min.Y, Width, Height)))
	// Temperature range on the left.
	require.Positive(t, dark(img, image.Rect(0, 0, XOffset, Padding+ascent+2)), "max label")
	require.Positive(t, dark(img, image.Rect(0, Height-YOffset-ascent-2, XOffset, Height-YOffset+2)), "min label")

	// Nothing is drawn in the right margin.
	require.Zero(t, dark(img, image.Rect(Width-Padding+1, 0, Width, Height-YOffset)))
}

func TestLabelX(t *testing.T) {
	// 51-pixel slots on the default panel.
	require.Equal(t, 40+11, labelX(40, 51, "9 AM"))
	require.Equal(t, 91+8, labelX(91, 51, "12 PM"))
	require.Equal(t, 40, labelX(40, 20, "12 PM"))

	// Label and bar share the slot centre.
	slot := 51
	for i, l := range []string{"9 AM", "12 PM", "3 PM", "6 PM"} {
		x0 := XOffset + i*slot
		x := labelX(x0, slot, l)
		require.GreaterOrEqual(t, x, x0)
		require.LessOrEqual(t, x+len(l)*glyphW, x0+slot)
		require.InDelta(t, x0+slot/2, x+len(l)*glyphW/2, 1)
	}
}

func TestCanvasPrecipBars(t *testing.T) {
	c := newChart()
	s := []forecast.Sample{{Label: "9 AM", Temp: 40, Precip: 100}}
	img := c.Canvas(s, forecast.Bounds{Min: 40, Max: 40})

	slot := (Width - Padding - XOffset) / forecast.DefaultEntries
	bar := image.Rect(XOffset+slot/4, Padding+4, XOffset+slot*3/4, Height-YOffset)
	n := dark(img, bar)
	// Half-tone: roughly half the pixels inked.
	require.InDelta(t, bar.Dx()*bar.Dy()/2, n, float64(bar.Dx()*bar.Dy())/4)

	empty := image.Rect(XOffset+slot+2, Padding, XOffset+2*slot-2, Height-YOffset)
	require.Less(t, dark(img, empty), empty.Dx()*empty.Dy()/10)
}

func TestCanvasWithoutSamples(t *testing.T) {
	c := newChart()
	img := c.Canvas(nil, forecast.NewBounds())
	require.Zero(t, dark(img, img.Rect))

	var px []byte
	err := c.Render(context.Background(), nil, forecast.NewBounds(), func(_ frame.Region, b []byte) error {
		px = b
		return nil
	})
	require.NoError(t, err)
	// 250 pixels fill 31 bytes and two bits of the last one.
	for y := range Height {
		row := px[8+y*32 : 8+(y+1)*32]
		for _, b := range row[:31] {
			require.Equal(t, byte(0xFF), b)
		}
		require.Equal(t, byte(0xC0), row[31])
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newChart().Render(ctx, samples(), forecast.Bounds{Min: 38, Max: 45}, func(frame.Region, []byte) error {
		t.Fatal("flushed after cancel")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTempRange(t *testing.T) {
	lo, hi := tempRange(forecast.NewBounds())
	require.Equal(t, []float64{0, 100}, []float64{lo, hi})

	lo, hi = tempRange(forecast.Bounds{Min: 40, Max: 40})
	require.Equal(t, []float64{39, 41}, []float64{lo, hi})

	lo, hi = tempRange(forecast.Bounds{Min: 38.5, Max: 45.2})
	require.Equal(t, []float64{38, 46}, []float64{lo, hi})

	lo, hi = tempRange(forecast.Bounds{Min: math.Inf(-1), Max: 3})
	require.Equal(t, []float64{0, 100}, []float64{lo, hi})
}

func TestPack(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 2))
	fill(img, img.Rect, white)
	img.SetGray(0, 0, color.Gray{})
	img.SetGray(9, 1, color.Gray{})

	px := Pack(img, 8)
	require.Len(t, px, 8+2*2)
	// Row 0: first pixel black; pad bits stay clear.
	require.Equal(t, []byte{0x7F, 0xC0, 0xFF, 0x80}, px[8:])

	require.Len(t, Pack(img, 0), 4)
	require.Equal(t, palette[:4], Pack(img, 4)[:4])
}
