// Package assembly reassembles a response delivered as ordered message chunks
// into a single JSON document.
package assembly

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// DefaultCapacity is the largest response the assembler will hold.
const DefaultCapacity = 4096

var (
	// ErrCapacityExceeded is returned by AddChunk when the chunk does not fit.
	// The partial response is discarded.
	ErrCapacityExceeded = errors.New("assembly buffer capacity exceeded")
	// ErrIncomplete means the buffer does not hold a whole document yet.
	ErrIncomplete = errors.New("response incomplete")
	// ErrMalformed means the buffered bytes can never form a valid document.
	ErrMalformed = errors.New("response malformed")
	// ErrDiscarding is returned for chunks of a response that was already
	// abandoned; they are dropped until the next response starts.
	ErrDiscarding = errors.New("response abandoned")
)

// Payload is a structurally complete JSON object.
type Payload []byte

// Assembler accumulates chunks into a fixed-capacity buffer. It is not safe
// for concurrent use; the duty-cycle loop is its only caller.
type Assembler struct {
	buf        []byte
	capacity   int
	discarding bool
}

// New creates an assembler holding at most capacity bytes.
func New(capacity int) *Assembler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Assembler{
		buf:      make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Len returns the number of buffered bytes.
func (a *Assembler) Len() int { return len(a.buf) }

// Cap returns the buffer capacity.
func (a *Assembler) Cap() int { return a.capacity }

// Reset drops any buffered data and leaves discard mode.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.discarding = false
}

// AddChunk appends data for the given event. An event name ending in "/0"
// marks the first chunk of a response and starts a fresh accumulation.
func (a *Assembler) AddChunk(event string, data []byte) error {
	if idx, ok := ChunkIndex(event); ok && idx == 0 {
		a.Reset()
	}
	if a.discarding {
		return ErrDiscarding
	}
	if len(a.buf)+len(data) > a.capacity {
		a.buf = a.buf[:0]
		a.discarding = true
		return ErrCapacityExceeded
	}
	a.buf = append(a.buf, data...)
	return nil
}

// TryParse checks whether the buffer holds a complete JSON object. On
// success the buffer is consumed and the payload returned; the next chunk
// starts a new response. A malformed buffer is discarded.
func (a *Assembler) TryParse() (Payload, error) {
	if a.discarding {
		return nil, ErrDiscarding
	}
	err := check(a.buf)
	switch {
	case err == nil:
		p := make(Payload, len(a.buf))
		copy(p, a.buf)
		a.buf = a.buf[:0]
		return p, nil
	case errors.Is(err, ErrMalformed):
		a.buf = a.buf[:0]
		return nil, err
	default:
		return nil, err
	}
}

func check(b []byte) error {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	if len(trimmed) == 0 {
		return ErrIncomplete
	}
	if trimmed[0] != '{' {
		return ErrMalformed
	}

	if json.Valid(trimmed) {
		return nil
	}

	// Scan again with one byte of padding: a document that is merely cut
	// short fails at or after the padding, a broken one fails inside it.
	padded := make([]byte, len(trimmed)+1)
	copy(padded, trimmed)
	padded[len(trimmed)] = ' '

	var doc json.RawMessage
	err := json.Unmarshal(padded, &doc)
	var syn *json.SyntaxError
	if errors.As(err, &syn) && syn.Offset > int64(len(trimmed)) {
		return ErrIncomplete
	}
	return errors.Join(ErrMalformed, err)
}

// ChunkIndex parses the trailing "/<n>" of an event name.
func ChunkIndex(event string) (int, bool) {
	i := strings.LastIndexByte(event, '/')
	if i < 0 || i == len(event)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(event[i+1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
