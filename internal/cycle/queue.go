package cycle

import (
	"context"

	"github.com/i474232898/weather-display/internal/remoteconfig"
)

type event interface{ isEvent() }

type configEvent struct{ cfg remoteconfig.Config }

type chunkEvent struct {
	name string
	data []byte
}

func (configEvent) isEvent() {}
func (chunkEvent) isEvent()  {}

// queue hands notifications from collaborator goroutines to the loop so
// that handlers only ever run on the loop, one at a time.
type queue struct {
	ch   chan event
	done chan struct{}
}

func newQueue(size int) *queue {
	return &queue{ch: make(chan event, size), done: make(chan struct{})}
}

// post blocks until the loop accepts ev, the queue is closed or ctx ends.
func (q *queue) post(ctx context.Context, ev event) bool {
	select {
	case q.ch <- ev:
		return true
	case <-q.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// drain runs fn for every event queued so far without waiting for more.
func (q *queue) drain(fn func(event)) {
	for {
		select {
		case ev := <-q.ch:
			fn(ev)
		default:
			return
		}
	}
}

func (q *queue) close() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}
