package weather_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-display/internal/forecast"
	"github.com/i474232898/weather-display/internal/store"
	"github.com/i474232898/weather-display/internal/weather"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubProvider struct {
	name  string
	f     weather.Forecast
	err   error
	calls int
	count int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Forecast(_ context.Context, _ weather.Location, count int) (weather.Forecast, error) {
	p.calls++
	p.count = count
	return p.f, p.err
}

func entries(n int) []weather.Entry {
	t := time.Date(2024, 1, 9, 14, 0, 0, 0, time.UTC)
	list := make([]weather.Entry, n)
	for i := range list {
		list[i] = weather.NewEntry(t.Add(time.Duration(i)*3*time.Hour), 40+float64(i), 0.1)
	}
	return list
}

func TestForecastFailover(t *testing.T) {
	down := &stubProvider{name: "a", err: errors.New("502")}
	up := &stubProvider{name: "b", f: weather.Forecast{List: entries(6)}}
	svc := weather.NewService(store.NewMemoryStore(0, 0), []weather.Provider{down, up}, discard)

	f, err := svc.Forecast(context.Background(), weather.Location{Lat: 1, Lon: 2}, 4)
	require.NoError(t, err)
	require.Equal(t, "b", f.Provider)
	require.Len(t, f.List, 4)
	require.Equal(t, 1, down.calls)
}

func TestForecastAllFail(t *testing.T) {
	svc := weather.NewService(store.NewMemoryStore(0, 0), []weather.Provider{
		&stubProvider{name: "a", err: errors.New("timeout")},
		&stubProvider{name: "b", err: errors.New("401")},
	}, discard)

	_, err := svc.Forecast(context.Background(), weather.Location{}, 4)
	require.ErrorIs(t, err, weather.ErrUnavailable)
	require.ErrorContains(t, err, "b: 401")

	svc = weather.NewService(store.NewMemoryStore(0, 0), nil, discard)
	_, err = svc.Forecast(context.Background(), weather.Location{}, 4)
	require.ErrorIs(t, err, weather.ErrNoProviders)
}

func TestForecastBodyParsesOnDevice(t *testing.T) {
	p := &stubProvider{name: "a", f: weather.Forecast{List: entries(4)}}
	svc := weather.NewService(store.NewMemoryStore(0, 0), []weather.Provider{p}, discard)

	body, err := svc.ForecastBody(context.Background(), forecast.Request{Lat: 1, Lon: 2})
	require.NoError(t, err)
	require.Equal(t, forecast.DefaultEntries, p.count)

	var decoded struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
			Pop float64 `json:"pop"`
		} `json:"list"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.Len(t, decoded.List, 4)
	require.Equal(t, 41.0, decoded.List[1].Main.Temp)
}

func TestRecordReport(t *testing.T) {
	s := store.NewMemoryStore(0, 0)
	svc := weather.NewService(s, nil, discard)

	svc.RecordReport("dev-1", forecast.Report{Lat: 1, Lon: 2, Count: 4})

	r, err := svc.GetLatest("dev-1")
	require.NoError(t, err)
	require.Equal(t, "dev-1", r.DeviceID)
	require.Equal(t, 4, r.Count)
	require.Equal(t, time.UTC, r.ReceivedAt.Location())

	got, err := svc.GetRange("dev-1", r.ReceivedAt.Add(-time.Minute), r.ReceivedAt)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
