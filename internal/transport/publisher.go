package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt"
	"github.com/Azure/iot-operations-sdks/go/protocol"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-display/internal/forecast"
)

// ErrSuspended means recent publishes kept failing and sending is paused
// until the breaker lets a trial request through.
var ErrSuspended = errors.New("publishing suspended")

// BreakerSettings tune when publishing is suspended.
type BreakerSettings struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
}

// Publisher sends completion events for one device. It is long-lived so
// that the breaker spans wake cycles.
type Publisher struct {
	sender sender[forecast.Report]
	cb     *gobreaker.CircuitBreaker
	log    *slog.Logger
}

// NewPublisher binds the completion topic for deviceID.
func NewPublisher(app *protocol.Application, client *mqtt.SessionClient, deviceID string, bs BreakerSettings, log *slog.Logger) (*Publisher, error) {
	s, err := protocol.NewTelemetrySender(
		app,
		client,
		protocol.JSON[forecast.Report]{},
		ReportTopic,
		protocol.WithTopicTokens{"deviceId": deviceID},
		protocol.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report sender: %w", err)
	}
	return newPublisher(s, deviceID, bs, log), nil
}

func newPublisher(s sender[forecast.Report], deviceID string, bs BreakerSettings, log *slog.Logger) *Publisher {
	if bs.Failures == 0 {
		bs.Failures = 3
	}
	if bs.Cooldown <= 0 {
		bs.Cooldown = 5 * time.Minute
	}
	log = log.With("device", deviceID)
	return &Publisher{
		sender: s,
		log:    log,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "publish-" + deviceID,
			MaxRequests: 1,
			Timeout:     bs.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= bs.Failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("publish breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Publish sends report and blocks until the broker acks it or ctx ends.
func (p *Publisher) Publish(ctx context.Context, report forecast.Report) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, p.sender.Send(ctx, report, expiry(ctx, time.Minute))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrSuspended, err)
	}
	return err
}
