package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt"
	"github.com/Azure/iot-operations-sdks/go/protocol"

	"github.com/i474232898/weather-display/internal/forecast"
)

// DefaultChunkSize is the largest response piece published at once.
const DefaultChunkSize = 512

// RequestHandler answers a device's forecast request.
type RequestHandler func(ctx context.Context, deviceID string, req forecast.Request) error

// ReportHandler records a device's completion event.
type ReportHandler func(ctx context.Context, deviceID string, r forecast.Report) error

// Hook is the cloud end of the forecast webhook. It listens to requests and
// completion events from every device and publishes chunked responses.
type Hook struct {
	requests  *protocol.TelemetryReceiver[forecast.Request]
	reports   *protocol.TelemetryReceiver[forecast.Report]
	chunks    sender[[]byte]
	chunkSize int
	log       *slog.Logger
}

// NewHook binds the webhook topics for all devices.
func NewHook(
	app *protocol.Application,
	client *mqtt.SessionClient,
	chunkSize int,
	onRequest RequestHandler,
	onReport ReportHandler,
	log *slog.Logger,
) (*Hook, error) {
	h := &Hook{chunkSize: chunkSize, log: log}
	if h.chunkSize <= 0 {
		h.chunkSize = DefaultChunkSize
	}

	var err error
	h.requests, err = protocol.NewTelemetryReceiver(
		app,
		client,
		protocol.JSON[forecast.Request]{},
		RequestTopic,
		func(ctx context.Context, msg *protocol.TelemetryMessage[forecast.Request]) error {
			return h.dispatch(ctx, "request", msg.TopicTokens, func(id string) error {
				return onRequest(ctx, id, msg.Payload)
			})
		},
		protocol.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request receiver: %w", err)
	}

	h.reports, err = protocol.NewTelemetryReceiver(
		app,
		client,
		protocol.JSON[forecast.Report]{},
		ReportTopic,
		func(ctx context.Context, msg *protocol.TelemetryMessage[forecast.Report]) error {
			return h.dispatch(ctx, "report", msg.TopicTokens, func(id string) error {
				return onReport(ctx, id, msg.Payload)
			})
		},
		protocol.WithLogger(log),
	)
	if err != nil {
		h.requests.Close()
		return nil, fmt.Errorf("failed to create report receiver: %w", err)
	}

	h.chunks, err = protocol.NewTelemetrySender(
		app,
		client,
		protocol.Raw{},
		ChunkTopic,
		protocol.WithLogger(log),
	)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to create chunk sender: %w", err)
	}
	return h, nil
}

// Start begins receiving requests and reports.
func (h *Hook) Start(ctx context.Context) error {
	if err := h.requests.Start(ctx); err != nil {
		return fmt.Errorf("failed to start request receiver: %w", err)
	}
	if err := h.reports.Start(ctx); err != nil {
		return fmt.Errorf("failed to start report receiver: %w", err)
	}
	return nil
}

// Close stops both receivers.
func (h *Hook) Close() {
	if h.requests != nil {
		h.requests.Close()
	}
	if h.reports != nil {
		h.reports.Close()
	}
}

// Respond publishes body to deviceID as numbered chunks, in order.
func (h *Hook) Respond(ctx context.Context, deviceID string, body []byte) error {
	parts := Split(body, h.chunkSize)
	for i, part := range parts {
		err := h.chunks.Send(ctx, part,
			protocol.WithTopicTokens{"deviceId": deviceID, "chunk": strconv.Itoa(i)},
			expiry(ctx, time.Minute),
		)
		if err != nil {
			return fmt.Errorf("chunk %d of %d: %w", i, len(parts), err)
		}
	}
	h.log.Info("forecast response sent", "device", deviceID, "bytes", len(body), "chunks", len(parts))
	return nil
}

var errNoDevice = errors.New("topic has no device id")

func (h *Hook) dispatch(ctx context.Context, kind string, tokens map[string]string, fn func(string) error) error {
	id := tokens["deviceId"]
	if id == "" {
		h.log.Warn("dropping message", "kind", kind, "error", errNoDevice)
		return nil
	}
	if err := fn(id); err != nil {
		h.log.Error("handler failed", "kind", kind, "device", id, "error", err)
		return err
	}
	return nil
}

// Split cuts body into pieces of at most size bytes. An empty body is one
// empty piece so the receiver still sees a first chunk.
func Split(body []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(body) == 0 {
		return [][]byte{{}}
	}
	parts := make([][]byte, 0, (len(body)+size-1)/size)
	for len(body) > 0 {
		n := min(size, len(body))
		parts = append(parts, body[:n])
		body = body[n:]
	}
	return parts
}
