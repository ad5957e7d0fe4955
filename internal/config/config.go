package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Display backends.
const (
	DisplayEPD = "epd"
	DisplayPNG = "png"
)

var errMissing = errors.New("required variable not set")

// Device configures cmd/weather-display.
type Device struct {
	DeviceID string
	LogLevel slog.Level

	// ForecastEntries is the number of periods requested and drawn.
	ForecastEntries  int
	AssemblyCapacity int

	PublishTimeout time.Duration
	HibernateFor   time.Duration
	// WakeTimeout bounds a single wake cycle.
	WakeTimeout  time.Duration
	LoopInterval time.Duration

	BreakerFailures uint32
	BreakerCooldown time.Duration

	Display          string
	DisplayPNGPath   string
	RenderHeaderSize int

	// ConfigKey is the state store key holding the remote configuration.
	ConfigKey string
}

// Relay configures cmd/weather-relay.
type Relay struct {
	LogLevel slog.Level

	OpenWeatherAPIKey string
	Units             string
	ChunkSize         int
	HTTPTimeout       time.Duration

	// In-memory store retention.
	StoreMaxHistory int           // max number of reports per device (0 = unlimited)
	StoreMaxAge     time.Duration // max age of reports (0 = unlimited)

	Port string
}

// LoadEnvFile loads a .env file into the environment if one exists.
// Variables already set take precedence.
func LoadEnvFile() error {
	return godotenv.Load()
}

// LoadDevice reads the device configuration from environment with sensible
// defaults.
func LoadDevice() (*Device, error) {
	cfg := &Device{}

	cfg.DeviceID = os.Getenv("DEVICE_ID")
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("DEVICE_ID: %w", errMissing)
	}

	var err error
	if cfg.LogLevel, err = logLevel(); err != nil {
		return nil, err
	}

	cfg.ForecastEntries = getenvInt("FORECAST_ENTRIES", 4)
	if cfg.ForecastEntries < 1 {
		return nil, fmt.Errorf("invalid FORECAST_ENTRIES: %d", cfg.ForecastEntries)
	}
	cfg.AssemblyCapacity = getenvInt("ASSEMBLY_CAPACITY", 4096)
	cfg.RenderHeaderSize = getenvInt("RENDER_HEADER_SIZE", 8)
	cfg.BreakerFailures = uint32(max(1, getenvInt("PUBLISH_BREAKER_FAILURES", 3)))

	for _, d := range []struct {
		dst *time.Duration
		key string
		def string
	}{
		{&cfg.PublishTimeout, "PUBLISH_TIMEOUT", "60s"},
		{&cfg.HibernateFor, "HIBERNATE_FOR", "60m"},
		{&cfg.WakeTimeout, "WAKE_TIMEOUT", "5m"},
		{&cfg.LoopInterval, "LOOP_INTERVAL", "100ms"},
		{&cfg.BreakerCooldown, "PUBLISH_BREAKER_COOLDOWN", "5m"},
	} {
		if *d.dst, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	if cfg.HibernateFor <= 0 || cfg.WakeTimeout <= 0 || cfg.LoopInterval <= 0 {
		return nil, errors.New("HIBERNATE_FOR, WAKE_TIMEOUT and LOOP_INTERVAL must be positive")
	}

	cfg.Display = strings.ToLower(getenvDefault("DISPLAY", DisplayEPD))
	switch cfg.Display {
	case DisplayEPD, DisplayPNG:
	default:
		return nil, fmt.Errorf("invalid DISPLAY %q: want %s or %s", cfg.Display, DisplayEPD, DisplayPNG)
	}
	cfg.DisplayPNGPath = getenvDefault("DISPLAY_PNG_PATH", "weather.png")
	cfg.ConfigKey = getenvDefault("CONFIG_KEY", "weather-display/"+cfg.DeviceID)

	return cfg, nil
}

// LoadRelay reads the relay configuration from environment with sensible
// defaults.
func LoadRelay() (*Relay, error) {
	cfg := &Relay{}

	var err error
	if cfg.LogLevel, err = logLevel(); err != nil {
		return nil, err
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")

	cfg.Units = strings.ToLower(getenvDefault("FORECAST_UNITS", "imperial"))
	if cfg.Units != "imperial" && cfg.Units != "metric" {
		return nil, fmt.Errorf("invalid FORECAST_UNITS %q", cfg.Units)
	}
	cfg.ChunkSize = getenvInt("CHUNK_SIZE", 512)

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	// Store retention: a week of hourly reports.
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 168)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "168h"); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func logLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return l, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return l, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
