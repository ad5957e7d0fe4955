package forecast

import (
	"math"
	"time"
)

// DefaultEntries is the number of forecast periods drawn on the chart.
const DefaultEntries = 4

// Sample is one forecast period as shown on the display.
type Sample struct {
	// Label is the local hour with meridiem, e.g. "9 AM".
	Label string `json:"label"`
	// Temp is in provider units (the relay asks for imperial).
	Temp float64 `json:"temp"`
	// Precip is the precipitation probability in whole percent, 0-100.
	Precip int       `json:"precip"`
	Time   time.Time `json:"time"`
}

// Bounds tracks the running temperature range of the current wake cycle.
// A fresh Bounds is inverted (Min=+Inf, Max=-Inf) until the first sample is
// observed; it only ever tightens towards the observed values.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NewBounds returns bounds seeded with sentinel extremes.
func NewBounds() Bounds {
	return Bounds{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Observe widens the bounds to include t.
func (b *Bounds) Observe(t float64) {
	if t < b.Min {
		b.Min = t
	}
	if t > b.Max {
		b.Max = t
	}
}

// Valid reports whether at least one temperature has been observed.
func (b Bounds) Valid() bool {
	return b.Min <= b.Max
}

// Location is the coordinate pair the forecast is requested for.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Request asks the cloud relay for a forecast. It is also the shape of the
// completion event, where Count is the number of samples drawn.
type Request struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Count int     `json:"cnt"`
}

// Report is the telemetry event emitted once the chart has been drawn.
type Report Request
