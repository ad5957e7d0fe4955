// Package transport carries forecast requests, response chunks and
// completion events over MQTT.
package transport

import (
	"context"
	"strconv"
	"time"

	"github.com/Azure/iot-operations-sdks/go/protocol"
)

// Topic patterns. {deviceId} and {chunk} are topic tokens.
const (
	RequestTopic = "devices/{deviceId}/hook/weather"
	ChunkTopic   = "devices/{deviceId}/hook-response/weather/{chunk}"
	ReportTopic  = "devices/{deviceId}/events/weather"

	// ChunkEventPrefix is prepended to the chunk index to form the event
	// name the assembler sees.
	ChunkEventPrefix = "hook-response/weather/"
)

// ChunkEvent names the i-th response chunk.
func ChunkEvent(i int) string {
	return ChunkEventPrefix + strconv.Itoa(i)
}

// sender is the part of protocol.TelemetrySender used here.
type sender[T any] interface {
	Send(ctx context.Context, val T, opt ...protocol.SendOption) error
}

// expiry derives the message expiry from ctx, so that a message is not
// delivered after the caller stopped waiting for it.
func expiry(ctx context.Context, fallback time.Duration) protocol.WithTimeout {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl).Round(time.Second); d >= time.Second {
			return protocol.WithTimeout(d)
		}
		return protocol.WithTimeout(time.Second)
	}
	return protocol.WithTimeout(fallback)
}
