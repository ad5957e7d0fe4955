package transport

import (
	"log/slog"
	"sync/atomic"

	"github.com/Azure/iot-operations-sdks/go/mqtt"
)

type connectionEvents interface {
	RegisterConnectEventHandler(mqtt.ConnectEventHandler) func()
	RegisterDisconnectEventHandler(mqtt.DisconnectEventHandler) func()
}

// Link tracks the session's connection state. Register it before starting
// the session client so the first connect is seen.
type Link struct {
	up    atomic.Bool
	stops []func()
}

// WatchLink follows connect and disconnect events of client.
func WatchLink(client connectionEvents, log *slog.Logger) *Link {
	l := &Link{}
	l.stops = append(l.stops,
		client.RegisterConnectEventHandler(func(e *mqtt.ConnectEvent) {
			l.up.Store(true)
			log.Info("connected to broker", "reason_code", e.ReasonCode)
		}),
		client.RegisterDisconnectEventHandler(func(e *mqtt.DisconnectEvent) {
			l.up.Store(false)
			log.Warn("disconnected from broker", "error", e.Error)
		}),
	)
	return l
}

// Connected reports whether the session is currently connected.
func (l *Link) Connected() bool { return l.up.Load() }

// Close unregisters the event handlers.
func (l *Link) Close() {
	for _, stop := range l.stops {
		stop()
	}
	l.stops = nil
}
