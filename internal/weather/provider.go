package weather

import (
	"context"
	"time"
)

// Provider abstracts a forecast source (e.g. OpenWeatherMap, Open-Meteo).
type Provider interface {
	Name() string
	// Forecast returns up to count 3-hour periods starting with the next one.
	Forecast(ctx context.Context, loc Location, count int) (Forecast, error)
}

// Store is the contract the in-memory report store (and any future
// persistent store) must satisfy.
type Store interface {
	SaveReport(r Report)
	GetLatest(deviceID string) (Report, error)
	GetRange(deviceID string, from, to time.Time) ([]Report, error)
}
