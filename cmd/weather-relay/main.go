package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt"
	"github.com/Azure/iot-operations-sdks/go/protocol"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	httpapi "github.com/i474232898/weather-display/internal/api/http"
	"github.com/i474232898/weather-display/internal/config"
	"github.com/i474232898/weather-display/internal/forecast"
	"github.com/i474232898/weather-display/internal/logging"
	"github.com/i474232898/weather-display/internal/store"
	"github.com/i474232898/weather-display/internal/transport"
	"github.com/i474232898/weather-display/internal/weather"
	"github.com/i474232898/weather-display/internal/weather/providers"
)

func main() {
	envErr := config.LoadEnvFile()

	cfg, err := config.LoadRelay()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.LogLevel)
	if envErr != nil {
		log.Debug("no .env file loaded", "error", envErr)
	}

	if err := run(cfg, log); err != nil {
		log.Error("weather-relay stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Relay, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// OpenWeatherMap first, Open-Meteo (no key) as fallback.
	units := weather.Units(cfg.Units)
	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, units))
	} else {
		log.Warn("OPENWEATHER_API_KEY not set; using Open-Meteo only")
	}
	provs = append(provs, providers.NewOpenMeteoProvider(httpClient, units))

	service := weather.NewService(memStore, provs, log)

	app, err := protocol.NewApplication(protocol.WithLogger(log))
	if err != nil {
		return err
	}
	client, err := mqtt.NewSessionClientFromEnv(mqtt.WithLogger(log))
	if err != nil {
		return fmt.Errorf("mqtt session: %w", err)
	}

	var hook *transport.Hook
	hook, err = transport.NewHook(app, client, cfg.ChunkSize,
		func(ctx context.Context, deviceID string, req forecast.Request) error {
			log := log.With("device", deviceID, "request_id", uuid.NewString())
			log.Info("forecast requested", "lat", req.Lat, "lon", req.Lon, "cnt", req.Count)

			body, err := service.ForecastBody(ctx, req)
			if err != nil {
				return err
			}
			if err := hook.Respond(ctx, deviceID, body); err != nil {
				return fmt.Errorf("respond: %w", err)
			}
			log.Debug("forecast delivered", "bytes", len(body))
			return nil
		},
		func(_ context.Context, deviceID string, r forecast.Report) error {
			service.RecordReport(deviceID, r)
			return nil
		},
		log,
	)
	if err != nil {
		return err
	}
	defer hook.Close()

	if err := client.Start(); err != nil {
		return fmt.Errorf("mqtt start: %w", err)
	}
	defer func() {
		if err := client.Stop(); err != nil {
			log.Warn("mqtt stop", "error", err)
		}
	}()
	if err := hook.Start(ctx); err != nil {
		return err
	}

	web := fiber.New(fiber.Config{
		AppName:               "weather-relay",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	web.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	web.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	web.Use(recover.New())

	web.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-relay",
		})
	})

	httpapi.RegisterRoutes(web, service)

	go func() {
		if err := web.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()
	log.Info("weather-relay running", "port", cfg.Port, "providers", len(provs))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := web.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	return nil
}
