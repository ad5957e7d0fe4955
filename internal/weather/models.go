package weather

import (
	"fmt"
	"time"
)

// Units selects the temperature scale providers report in.
type Units string

const (
	UnitsImperial Units = "imperial"
	UnitsMetric   Units = "metric"
)

// Location is the coordinate pair a forecast is fetched for.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// Forecast is a 3-hour forecast in the OpenWeatherMap "list" shape, which
// is what devices parse. Fields devices do not read are dropped.
type Forecast struct {
	Provider string  `json:"provider,omitempty"`
	List     []Entry `json:"list"`
}

// Entry is one forecast period.
type Entry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	// Pop is the probability of precipitation, 0 to 1.
	Pop float64 `json:"pop"`
}

// NewEntry builds an entry for the period starting at t.
func NewEntry(t time.Time, temp, pop float64) Entry {
	e := Entry{Dt: t.Unix(), Pop: pop}
	e.Main.Temp = temp
	return e
}

// Report is a device's completion event as kept by the relay.
type Report struct {
	DeviceID   string    `json:"deviceId"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Count      int       `json:"cnt"`
	ReceivedAt time.Time `json:"receivedAt"` // always UTC
}
