package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-display/internal/weather"
)

// period is the forecast step devices expect.
const period = 3 * time.Hour

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// Its hourly forecast is sampled every three hours to match OpenWeatherMap.
type OpenMeteoProvider struct {
	name    string
	units   weather.Units
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewOpenMeteoProvider(client *http.Client, units weather.Units) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		units:   units,
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("openmeteo"),
		now:     time.Now,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Forecast(ctx context.Context, loc weather.Location, count int) (weather.Forecast, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	values.Set("hourly", "temperature_2m,precipitation_probability")
	values.Set("timeformat", "unixtime")
	values.Set("timezone", "GMT")
	values.Set("forecast_days", strconv.Itoa(min(16, count*3/24+2)))
	if p.units == weather.UnitsImperial {
		values.Set("temperature_unit", "fahrenheit")
	}

	var payload struct {
		Hourly struct {
			Time []int64 `json:"time"`
			// Null where the model has no value.
			Temperature []*float64 `json:"temperature_2m"`
			Precip      []*float64 `json:"precipitation_probability"`
		} `json:"hourly"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Forecast{}, err
	}

	h := payload.Hourly
	now := p.now().Unix()
	f := weather.Forecast{List: make([]weather.Entry, 0, count)}
	for i, ts := range h.Time {
		if len(f.List) == count {
			break
		}
		if ts < now || ts%int64(period/time.Second) != 0 {
			continue
		}
		if i >= len(h.Temperature) || h.Temperature[i] == nil {
			continue
		}
		var pop float64
		if i < len(h.Precip) && h.Precip[i] != nil {
			pop = *h.Precip[i] / 100
		}
		f.List = append(f.List, weather.NewEntry(time.Unix(ts, 0), *h.Temperature[i], pop))
	}
	if len(f.List) == 0 {
		return weather.Forecast{}, errEmptyForecast
	}
	return f, nil
}
