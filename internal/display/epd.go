package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v4"
	"periph.io/x/host/v3"
)

// EPD is the Waveshare 2.13" e-paper HAT. The panel is mounted in portrait,
// so landscape frames are rotated before they are sent.
type EPD struct {
	port     spi.PortCloser
	dev      *waveshare2in13v4.Dev
	log      *slog.Logger
	sleeping bool
}

// OpenEPD initialises the host, opens the default SPI port and clears the
// panel.
func OpenEPD(log *slog.Logger) (*EPD, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("open spi: %w", err)
	}

	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(port, &opts)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("open panel: %w", err)
	}
	if err := dev.Init(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("init panel: %w", err)
	}
	if err := dev.Clear(color.White); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("clear panel: %w", err)
	}
	log.Info("e-paper panel ready", "bounds", dev.Bounds())
	return &EPD{port: port, dev: dev, log: log}, nil
}

// Show draws a landscape frame and puts the panel controller to sleep.
func (e *EPD) Show(img *image.Gray) error {
	if e.sleeping {
		if err := e.dev.Init(); err != nil {
			return fmt.Errorf("wake panel: %w", err)
		}
		e.sleeping = false
	}

	out := image1bit.NewVerticalLSB(e.dev.Bounds())
	draw.Draw(out, out.Bounds(), Portrait(img), image.Point{}, draw.Src)
	if err := e.dev.Draw(e.dev.Bounds(), out, image.Point{}); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	if err := e.dev.Sleep(); err != nil {
		e.log.Warn("panel sleep failed", "error", err)
		return nil
	}
	e.sleeping = true
	return nil
}

// Close halts the panel and releases the SPI port.
func (e *EPD) Close() error {
	if err := e.dev.Halt(); err != nil {
		e.log.Warn("panel halt failed", "error", err)
	}
	return e.port.Close()
}
