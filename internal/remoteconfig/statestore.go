package remoteconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Azure/iot-operations-sdks/go/services/statestore"
)

// Source watches one state store key holding the device's Config as JSON.
type Source struct {
	client *statestore.Client[string, []byte]
	key    string
	log    *slog.Logger
}

// NewSource creates a config source for key. The client must be started by
// the caller.
func NewSource(client *statestore.Client[string, []byte], key string, log *slog.Logger) *Source {
	return &Source{client: client, key: key, log: log}
}

// Watch reads the record once, then again on every change notification, and
// calls onSync with each valid record. Invalid or missing records are logged
// and skipped. onSync runs on the watcher's goroutine.
func (s *Source) Watch(ctx context.Context, onSync func(Config)) (func(), error) {
	notes, remove := s.client.Notify(s.key)
	if err := s.client.KeyNotify(ctx, s.key); err != nil {
		remove()
		return nil, fmt.Errorf("failed to watch %s: %w", s.key, err)
	}

	done := make(chan struct{})
	go func() {
		// The record is read once up front; the store only notifies on change.
		s.sync(ctx, nil, onSync)
		for {
			select {
			case n, ok := <-notes:
				if !ok {
					return
				}
				s.log.Debug("remote config notification", "key", s.key, "operation", n.Operation)
				if n.Operation == "DELETE" {
					continue
				}
				s.sync(ctx, n.Value, onSync)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		close(done)
		remove()
		if err := s.client.KeyNotifyStop(context.WithoutCancel(ctx), s.key); err != nil {
			s.log.Warn("failed to stop key notifications", "key", s.key, "error", err)
		}
	}, nil
}

// Get reads the current record.
func (s *Source) Get(ctx context.Context) (Config, error) {
	res, err := s.client.Get(ctx, s.key)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read %s: %w", s.key, err)
	}
	if len(res.Value) == 0 {
		return Config{}, fmt.Errorf("%w: %s is empty", ErrInvalid, s.key)
	}
	return Parse(res.Value)
}

func (s *Source) sync(ctx context.Context, value []byte, onSync func(Config)) {
	var (
		cfg Config
		err error
	)
	if len(value) > 0 {
		cfg, err = Parse(value)
	} else {
		cfg, err = s.Get(ctx)
	}
	if err != nil {
		if errors.Is(err, ErrInvalid) {
			s.log.Warn("ignoring remote config", "key", s.key, "error", err)
		} else {
			s.log.Error("remote config sync failed", "key", s.key, "error", err)
		}
		return
	}
	s.log.Info("remote config synchronized",
		"key", s.key, "lat", cfg.Lat, "lon", cfg.Lon, "tz", cfg.PosixTZ)
	onSync(cfg)
}
