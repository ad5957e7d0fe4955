package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/weather-display/internal/forecast"
)

var (
	ErrNoProviders = errors.New("no weather providers configured")
	// ErrUnavailable means every provider failed.
	ErrUnavailable = errors.New("no forecast data available")
)

// Service answers device forecast requests and records their reports.
type Service struct {
	store     Store
	providers []Provider
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates a new Service. Providers are tried in order.
func NewService(store Store, providers []Provider, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		providers: providers,
		log:       log,
		now:       time.Now,
	}
}

// Forecast fetches count periods for loc from the first provider that
// answers.
func (s *Service) Forecast(ctx context.Context, loc Location, count int) (Forecast, error) {
	if len(s.providers) == 0 {
		return Forecast{}, ErrNoProviders
	}
	if count <= 0 {
		count = forecast.DefaultEntries
	}

	var errs []error
	for _, p := range s.providers {
		f, err := p.Forecast(ctx, loc, count)
		if err != nil {
			// Log and continue; the next provider may answer.
			s.log.Warn("provider forecast failed", "provider", p.Name(), "location", loc.Key(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if len(f.List) > count {
			f.List = f.List[:count]
		}
		f.Provider = p.Name()
		s.log.Debug("forecast fetched", "provider", p.Name(), "location", loc.Key(), "entries", len(f.List))
		return f, nil
	}
	return Forecast{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

// ForecastBody is Forecast encoded the way devices receive it.
func (s *Service) ForecastBody(ctx context.Context, req forecast.Request) ([]byte, error) {
	f, err := s.Forecast(ctx, Location{Lat: req.Lat, Lon: req.Lon}, req.Count)
	if err != nil {
		return nil, err
	}
	return json.Marshal(f)
}

// RecordReport stores a device's completion event.
func (s *Service) RecordReport(deviceID string, r forecast.Report) {
	s.store.SaveReport(Report{
		DeviceID:   deviceID,
		Lat:        r.Lat,
		Lon:        r.Lon,
		Count:      r.Count,
		ReceivedAt: s.now().UTC(),
	})
	s.log.Info("device report recorded", "device", deviceID, "cnt", r.Count)
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(deviceID string) (Report, error) {
	return s.store.GetLatest(deviceID)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(deviceID string, from, to time.Time) ([]Report, error) {
	return s.store.GetRange(deviceID, from, to)
}
