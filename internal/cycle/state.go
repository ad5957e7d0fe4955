package cycle

import (
	"github.com/i474232898/weather-display/internal/forecast"
	"github.com/i474232898/weather-display/internal/remoteconfig"
)

// Phase is where the controller is in the wake cycle.
type Phase int

const (
	Booting Phase = iota
	SyncingConfig
	AwaitingForecast
	Rendering
	Publishing
	Sleeping
)

func (p Phase) String() string {
	switch p {
	case Booting:
		return "booting"
	case SyncingConfig:
		return "syncing-config"
	case AwaitingForecast:
		return "awaiting-forecast"
	case Rendering:
		return "rendering"
	case Publishing:
		return "publishing"
	case Sleeping:
		return "sleeping"
	default:
		return "unknown"
	}
}

// Flags mark the once-per-cycle milestones. They start false on every wake
// and are only ever set, never cleared, until the device sleeps.
type Flags struct {
	ConfigSynced      bool
	ForecastPublished bool
	DisplayUpdated    bool
}

// State is everything one wake cycle knows. It is created fresh on each wake
// and owned by the controller's loop.
type State struct {
	Phase  Phase
	Flags  Flags
	Config remoteconfig.Config
	// Samples are the most recently drawn forecast periods.
	Samples []forecast.Sample
	// Bounds accumulate across every payload seen this cycle.
	Bounds forecast.Bounds
	// Requested is set once the forecast request has been accepted.
	Requested bool
	// PublishAttempts counts completion-event sends, successful or not.
	PublishAttempts int
	// LastPublishErr is the outcome of the most recent failed send.
	LastPublishErr error
}

// NewState returns the state a freshly woken device starts from.
func NewState() *State {
	return &State{Phase: Booting, Bounds: forecast.NewBounds()}
}

// clone copies s so callers cannot alias the loop's slices.
func (s *State) clone() State {
	c := *s
	c.Samples = append([]forecast.Sample(nil), s.Samples...)
	return c
}
