// Package cycle runs one wake cycle of the weather display: sync the remote
// config, request a forecast, draw it, report completion and hibernate.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/weather-display/internal/assembly"
	"github.com/i474232898/weather-display/internal/forecast"
	"github.com/i474232898/weather-display/internal/frame"
	"github.com/i474232898/weather-display/internal/remoteconfig"
)

var (
	ErrMissingDependency = errors.New("missing dependency")
	// ErrPublishTimeout means the completion event was not confirmed in time.
	ErrPublishTimeout = errors.New("publish timed out")
	// ErrPublishRejected means the transport refused the completion event.
	ErrPublishRejected = errors.New("publish rejected")
)

// Deps are the controller's collaborators. All are required.
type Deps struct {
	Config    ConfigSource
	Relay     Relay
	Publisher Publisher
	Link      Link
	Renderer  Renderer
	Display   Display
	Sleeper   Sleeper
}

// Options tune one wake cycle.
type Options struct {
	// Entries is the number of forecast periods requested and drawn.
	Entries int
	// Capacity bounds the reassembled forecast response in bytes.
	Capacity int
	// PublishTimeout bounds each completion-event send.
	PublishTimeout time.Duration
	// HibernateFor is how long the device sleeps after a cycle.
	HibernateFor time.Duration
	// Interval is the pause between loop passes.
	Interval time.Duration
}

func (o *Options) defaults() {
	if o.Entries <= 0 {
		o.Entries = forecast.DefaultEntries
	}
	if o.Capacity <= 0 {
		o.Capacity = assembly.DefaultCapacity
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 60 * time.Second
	}
	if o.HibernateFor <= 0 {
		o.HibernateFor = 60 * time.Minute
	}
	if o.Interval <= 0 {
		o.Interval = 100 * time.Millisecond
	}
}

// Controller sequences a single wake cycle. Collaborator callbacks are
// queued and handled on the goroutine calling Step or Run.
type Controller struct {
	deps Deps
	opts Options
	log  *slog.Logger

	state  *State
	asm    *assembly.Assembler
	ext    *forecast.Extractor
	conv   frame.Converter
	events *queue
	stops  []func()
}

// New creates a controller with fresh cycle state.
func New(deps Deps, opts Options, log *slog.Logger) (*Controller, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("%w: config source", ErrMissingDependency)
	case deps.Relay == nil:
		return nil, fmt.Errorf("%w: relay", ErrMissingDependency)
	case deps.Publisher == nil:
		return nil, fmt.Errorf("%w: publisher", ErrMissingDependency)
	case deps.Link == nil:
		return nil, fmt.Errorf("%w: link", ErrMissingDependency)
	case deps.Renderer == nil:
		return nil, fmt.Errorf("%w: renderer", ErrMissingDependency)
	case deps.Display == nil:
		return nil, fmt.Errorf("%w: display", ErrMissingDependency)
	case deps.Sleeper == nil:
		return nil, fmt.Errorf("%w: sleeper", ErrMissingDependency)
	}
	if log == nil {
		log = slog.Default()
	}
	opts.defaults()

	return &Controller{
		deps:   deps,
		opts:   opts,
		log:    log,
		state:  NewState(),
		asm:    assembly.New(opts.Capacity),
		ext:    forecast.NewExtractor(opts.Entries),
		conv:   frame.Converter{HeaderSize: deps.Renderer.HeaderSize()},
		events: newQueue(64),
	}, nil
}

// State returns a snapshot of the cycle state.
func (c *Controller) State() State {
	return c.state.clone()
}

// Start subscribes to the relay's response chunks and to the remote config.
func (c *Controller) Start(ctx context.Context) error {
	stop, err := c.deps.Relay.Subscribe(ctx, func(name string, data []byte) {
		// Transport buffers may be reused once the callback returns.
		c.events.post(ctx, chunkEvent{name: name, data: append([]byte(nil), data...)})
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to forecast responses: %w", err)
	}
	c.stops = append(c.stops, stop)

	c.state.Phase = SyncingConfig
	stop, err = c.deps.Config.Watch(ctx, func(cfg remoteconfig.Config) {
		c.events.post(ctx, configEvent{cfg: cfg})
	})
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to watch remote config: %w", err)
	}
	c.stops = append(c.stops, stop)

	c.log.Info("wake cycle started", "phase", c.state.Phase)
	return nil
}

// Close stops all subscriptions. Pending events are dropped.
func (c *Controller) Close() {
	c.events.close()
	for i := len(c.stops) - 1; i >= 0; i-- {
		c.stops[i]()
	}
	c.stops = nil
}

// Run starts the controller and loops until the device hibernates or ctx
// ends.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		if c.Step(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step runs one loop pass. It reports true once hibernation was accepted.
func (c *Controller) Step(ctx context.Context) bool {
	c.events.drain(func(ev event) { c.dispatch(ctx, ev) })

	if !c.state.Flags.ConfigSynced || !c.deps.Link.Connected() {
		return false
	}
	if !c.state.Requested {
		c.request(ctx)
	}
	if c.state.Flags.DisplayUpdated && !c.state.Flags.ForecastPublished {
		c.publish(ctx)
	}
	if c.state.Flags.DisplayUpdated {
		return c.hibernate(ctx)
	}
	return false
}

func (c *Controller) dispatch(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case configEvent:
		c.onConfig(ev.cfg)
	case chunkEvent:
		c.onChunk(ctx, ev.name, ev.data)
	}
}

func (c *Controller) onConfig(cfg remoteconfig.Config) {
	loc, err := cfg.Location()
	if err != nil {
		c.log.Error("ignoring remote config with bad timezone", "tz", cfg.PosixTZ, "error", err)
		return
	}
	c.state.Config = cfg
	c.ext.Location = loc
	if c.state.Flags.ConfigSynced {
		c.log.Info("remote config updated", "lat", cfg.Lat, "lon", cfg.Lon, "tz", cfg.PosixTZ)
		return
	}
	c.state.Flags.ConfigSynced = true
	c.state.Phase = AwaitingForecast
	c.log.Info("remote config synced", "lat", cfg.Lat, "lon", cfg.Lon, "tz", cfg.PosixTZ)
}

func (c *Controller) onChunk(ctx context.Context, name string, data []byte) {
	if err := c.asm.AddChunk(name, data); err != nil {
		if errors.Is(err, assembly.ErrDiscarding) {
			c.log.Debug("dropping chunk of abandoned response", "event", name)
			return
		}
		c.log.Error("failed to add forecast chunk", "event", name, "size", len(data),
			"capacity", c.asm.Cap(), "error", err)
		return
	}

	payload, err := c.asm.TryParse()
	switch {
	case errors.Is(err, assembly.ErrIncomplete):
		c.log.Debug("forecast response incomplete", "event", name, "buffered", c.asm.Len())
		return
	case err != nil:
		c.log.Error("forecast response malformed", "event", name, "error", err)
		return
	}
	c.draw(ctx, payload)
}

func (c *Controller) draw(ctx context.Context, payload assembly.Payload) {
	c.state.Phase = Rendering
	// Bounds are only committed once extraction succeeds.
	bounds := c.state.Bounds
	samples, err := c.ext.Extract(payload, &bounds)
	if err != nil {
		c.log.Error("failed to extract forecast", "error", err)
		c.state.Phase = AwaitingForecast
		return
	}
	c.state.Samples = samples
	c.state.Bounds = bounds
	for i, s := range samples {
		c.log.Info("forecast entry", "index", i, "time", s.Label, "temp", s.Temp, "precip", s.Precip)
	}

	if err := c.deps.Renderer.Render(ctx, samples, bounds, c.flush); err != nil {
		c.log.Error("failed to render forecast", "error", err)
		c.state.Phase = AwaitingForecast
		return
	}
	c.state.Flags.DisplayUpdated = true
	c.state.Phase = Publishing
	c.log.Info("display updated", "samples", len(samples), "min", bounds.Min, "max", bounds.Max)
}

// flush converts one rendered region and pushes it to the panel.
func (c *Controller) flush(region frame.Region, px []byte) error {
	bm, err := c.conv.Convert(region, px)
	if err != nil {
		return err
	}
	c.deps.Display.ClearBuffer()
	if err := c.deps.Display.DrawBitmap(region.X, region.Y, bm.Data, region.W, region.H, frame.Black); err != nil {
		return fmt.Errorf("failed to draw region: %w", err)
	}
	if err := c.deps.Display.Display(); err != nil {
		return fmt.Errorf("failed to refresh panel: %w", err)
	}
	return nil
}

func (c *Controller) request(ctx context.Context) {
	req := forecast.Request{
		Lat:   c.state.Config.Lat,
		Lon:   c.state.Config.Lon,
		Count: c.opts.Entries,
	}
	rctx, cancel := context.WithTimeout(ctx, c.opts.PublishTimeout)
	defer cancel()
	if err := c.deps.Relay.Request(rctx, req); err != nil {
		c.log.Warn("forecast request failed, retrying next pass", "error", err)
		return
	}
	c.state.Requested = true
	c.log.Info("forecast requested", "lat", req.Lat, "lon", req.Lon, "cnt", req.Count)
}

func (c *Controller) publish(ctx context.Context) {
	report := forecast.Report{
		Lat:   c.state.Config.Lat,
		Lon:   c.state.Config.Lon,
		Count: len(c.state.Samples),
	}
	pctx, cancel := context.WithTimeout(ctx, c.opts.PublishTimeout)
	defer cancel()

	c.state.PublishAttempts++
	err := c.deps.Publisher.Publish(pctx, report)
	if err == nil {
		c.state.Flags.ForecastPublished = true
		c.state.LastPublishErr = nil
		c.log.Info("publish succeeded", "cnt", report.Count)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w after %s: %w", ErrPublishTimeout, c.opts.PublishTimeout, err)
	} else {
		err = fmt.Errorf("%w: %w", ErrPublishRejected, err)
	}
	c.state.LastPublishErr = err
	c.log.Warn("publish failed", "attempt", c.state.PublishAttempts, "error", err)
}

func (c *Controller) hibernate(ctx context.Context) bool {
	prev := c.state.Phase
	c.state.Phase = Sleeping
	c.log.Info("going to sleep", "for", c.opts.HibernateFor)
	if err := c.deps.Sleeper.Hibernate(ctx, c.opts.HibernateFor); err != nil {
		c.log.Error("hibernate refused", "error", err)
		c.state.Phase = prev
		return false
	}
	return true
}
