package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azure/iot-operations-sdks/go/mqtt"
	"github.com/Azure/iot-operations-sdks/go/protocol"
	"github.com/Azure/iot-operations-sdks/go/services/statestore"

	"github.com/i474232898/weather-display/internal/config"
	"github.com/i474232898/weather-display/internal/cycle"
	"github.com/i474232898/weather-display/internal/display"
	"github.com/i474232898/weather-display/internal/logging"
	"github.com/i474232898/weather-display/internal/remoteconfig"
	"github.com/i474232898/weather-display/internal/render"
	"github.com/i474232898/weather-display/internal/scheduler"
	"github.com/i474232898/weather-display/internal/transport"
)

func main() {
	envErr := config.LoadEnvFile()

	cfg, err := config.LoadDevice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.LogLevel).With("device", cfg.DeviceID)
	if envErr != nil {
		log.Debug("no .env file loaded", "error", envErr)
	}

	if err := run(cfg, log); err != nil {
		log.Error("weather-display stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Device, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := protocol.NewApplication(protocol.WithLogger(log))
	if err != nil {
		return err
	}

	// Connection settings come from the AIO_* environment.
	client, err := mqtt.NewSessionClientFromEnv(mqtt.WithLogger(log))
	if err != nil {
		return fmt.Errorf("mqtt session: %w", err)
	}

	// Registered before Start so the first connect is seen.
	link := transport.WatchLink(client, log)
	defer link.Close()

	state, err := statestore.New[string, []byte](app, client, statestore.WithLogger(log))
	if err != nil {
		return fmt.Errorf("state store: %w", err)
	}
	defer state.Close()

	publisher, err := transport.NewPublisher(app, client, cfg.DeviceID, transport.BreakerSettings{
		Failures: cfg.BreakerFailures,
		Cooldown: cfg.BreakerCooldown,
	}, log)
	if err != nil {
		return err
	}

	if err := client.Start(); err != nil {
		return fmt.Errorf("mqtt start: %w", err)
	}
	defer func() {
		if err := client.Stop(); err != nil {
			log.Warn("mqtt stop", "error", err)
		}
	}()
	if err := state.Start(ctx); err != nil {
		return fmt.Errorf("state store start: %w", err)
	}

	screen, closeScreen, err := openDisplay(cfg, log)
	if err != nil {
		return err
	}
	defer closeScreen()

	chart := render.New(render.Options{
		HeaderSize: cfg.RenderHeaderSize,
		Entries:    cfg.ForecastEntries,
	}, log)
	source := remoteconfig.NewSource(state, cfg.ConfigKey, log)

	var waker *scheduler.Waker
	waker = scheduler.New(cfg.HibernateFor, cfg.WakeTimeout, func(ctx context.Context) error {
		// Everything below lives for one cycle only.
		relay, err := transport.NewRelay(app, client, cfg.DeviceID, log)
		if err != nil {
			return err
		}
		ctrl, err := cycle.New(cycle.Deps{
			Config:    source,
			Relay:     relay,
			Publisher: publisher,
			Link:      link,
			Renderer:  chart,
			Display:   screen,
			Sleeper:   waker,
		}, cycle.Options{
			Entries:        cfg.ForecastEntries,
			Capacity:       cfg.AssemblyCapacity,
			PublishTimeout: cfg.PublishTimeout,
			HibernateFor:   cfg.HibernateFor,
			Interval:       cfg.LoopInterval,
		}, log.With("cycle", waker.Runs()))
		if err != nil {
			return err
		}
		return ctrl.Run(ctx)
	}, log)

	if err := waker.Start(); err != nil {
		return fmt.Errorf("failed to start wake scheduler: %w", err)
	}
	defer waker.Stop()

	log.Info("weather-display running", "every", cfg.HibernateFor, "display", cfg.Display)
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func openDisplay(cfg *config.Device, log *slog.Logger) (*display.Framebuffer, func(), error) {
	switch cfg.Display {
	case config.DisplayPNG:
		panel := display.PNGFile{Path: cfg.DisplayPNGPath}
		return display.NewFramebuffer(render.Width, render.Height, panel, log), func() {}, nil
	default:
		epd, err := display.OpenEPD(log)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := epd.Close(); err != nil {
				log.Warn("panel close", "error", err)
			}
		}
		return display.NewFramebuffer(render.Width, render.Height, epd, log), closer, nil
	}
}
