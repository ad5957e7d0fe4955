package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt"
	"github.com/Azure/iot-operations-sdks/go/protocol"

	"github.com/i474232898/weather-display/internal/forecast"
)

// Relay is the device end of the forecast webhook: it sends requests and
// receives the chunked response. A Relay serves one wake cycle.
type Relay struct {
	receiver *protocol.TelemetryReceiver[[]byte]
	sender   sender[forecast.Request]
	log      *slog.Logger

	mu      sync.Mutex
	onChunk func(event string, data []byte)
}

// NewRelay binds the request and response topics for deviceID.
func NewRelay(app *protocol.Application, client *mqtt.SessionClient, deviceID string, log *slog.Logger) (*Relay, error) {
	r := &Relay{log: log.With("device", deviceID)}
	tokens := protocol.WithTopicTokens{"deviceId": deviceID}

	var err error
	r.receiver, err = protocol.NewTelemetryReceiver(
		app,
		client,
		protocol.Raw{},
		ChunkTopic,
		r.handle,
		tokens,
		// Chunks must reach the assembler in arrival order.
		protocol.WithConcurrency(1),
		protocol.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk receiver: %w", err)
	}

	r.sender, err = protocol.NewTelemetrySender(
		app,
		client,
		protocol.JSON[forecast.Request]{},
		RequestTopic,
		tokens,
		protocol.WithLogger(log),
	)
	if err != nil {
		r.receiver.Close()
		return nil, fmt.Errorf("failed to create request sender: %w", err)
	}
	return r, nil
}

// Subscribe starts delivering response chunks to onChunk.
func (r *Relay) Subscribe(ctx context.Context, onChunk func(event string, data []byte)) (func(), error) {
	r.mu.Lock()
	r.onChunk = onChunk
	r.mu.Unlock()

	if r.receiver != nil {
		if err := r.receiver.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start chunk receiver: %w", err)
		}
	}
	return func() {
		r.mu.Lock()
		r.onChunk = nil
		r.mu.Unlock()
		if r.receiver != nil {
			r.receiver.Close()
		}
	}, nil
}

// Request publishes a forecast request and waits for the broker's ack.
func (r *Relay) Request(ctx context.Context, req forecast.Request) error {
	if err := r.sender.Send(ctx, req, expiry(ctx, time.Minute)); err != nil {
		return fmt.Errorf("forecast request: %w", err)
	}
	return nil
}

func (r *Relay) handle(_ context.Context, msg *protocol.TelemetryMessage[[]byte]) error {
	chunk, ok := msg.TopicTokens["chunk"]
	if !ok || chunk == "" {
		r.log.Warn("dropping response chunk without index", "topic_tokens", msg.TopicTokens)
		return nil
	}
	r.deliver(ChunkEventPrefix+chunk, msg.Payload)
	return nil
}

func (r *Relay) deliver(event string, data []byte) {
	r.mu.Lock()
	fn := r.onChunk
	r.mu.Unlock()
	if fn == nil {
		r.log.Debug("dropping response chunk, not subscribed", "event", event)
		return
	}
	fn(event, data)
}
