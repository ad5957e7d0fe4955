package cycle

import (
	"context"
	"time"

	"github.com/i474232898/weather-display/internal/forecast"
	"github.com/i474232898/weather-display/internal/frame"
	"github.com/i474232898/weather-display/internal/remoteconfig"
)

// ConfigSource delivers the device's remote configuration. onSync may be
// called from any goroutine, once at startup and again on every change.
type ConfigSource interface {
	Watch(ctx context.Context, onSync func(remoteconfig.Config)) (stop func(), err error)
}

// Relay carries the forecast request out and the chunked response back.
type Relay interface {
	// Subscribe registers onChunk for response chunks. event names end in
	// the chunk index, e.g. "hook-response/weather/0".
	Subscribe(ctx context.Context, onChunk func(event string, data []byte)) (stop func(), err error)
	// Request asks the relay to fetch a forecast.
	Request(ctx context.Context, req forecast.Request) error
}

// Publisher emits the completion event. Publish blocks until delivery is
// confirmed or ctx ends.
type Publisher interface {
	Publish(ctx context.Context, report forecast.Report) error
}

// Link reports whether the device is online.
type Link interface {
	Connected() bool
}

// FlushFunc receives one rendered region as packed pixels prefixed by the
// renderer's header.
type FlushFunc func(region frame.Region, px []byte) error

// Renderer draws the forecast chart.
type Renderer interface {
	// HeaderSize is the number of bytes prepended to every flushed frame.
	HeaderSize() int
	Render(ctx context.Context, samples []forecast.Sample, bounds forecast.Bounds, flush FlushFunc) error
}

// Display drives the e-paper panel.
type Display interface {
	ClearBuffer()
	DrawBitmap(x, y int, data []byte, w, h int, plane frame.Plane) error
	// Display pushes the buffer to the panel.
	Display() error
}

// Sleeper puts the device into its lowest power state. A nil error means
// the request was accepted and the cycle is over.
type Sleeper interface {
	Hibernate(ctx context.Context, d time.Duration) error
}
