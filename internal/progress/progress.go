// Package progress carries discovery, size, and clean events from the
// pipeline workers to a single consumer (CLI output or the interactive
// picker). Publishing never blocks a worker: when the consumer falls
// behind, events are dropped, not queued without bound.
package progress

import "sync"

// Kind discriminates event payloads.
type Kind int

const (
	// KindManifestFound reports the running count of manifests discovered.
	KindManifestFound Kind = iota
	// KindSizeResolved reports a record whose artifact size reached a
	// terminal state.
	KindSizeResolved
	// KindClean reports a phase change while cleaning one record.
	KindClean
)

// Phase is the per-record cleaning phase.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseBackingUp
	PhaseCleaning
	PhaseFinalizing
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseBackingUp:
		return "backing-up"
	case PhaseCleaning:
		return "cleaning"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseComplete:
		return "complete"
	}
	return "invalid"
}

// Event is one progress notification. Fields are populated per Kind.
type Event struct {
	Kind    Kind
	Project string // project root path
	Phase   Phase
	Count   int   // manifests found so far (KindManifestFound)
	Bytes   int64 // resolved or freed bytes
	Err     error
}

// Channel is an append-only event stream safe for concurrent producers
// and a single consumer.
type Channel struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

// NewChannel creates a channel with the given buffer. A zero or negative
// buffer gets a sane default.
func NewChannel(buffer int) *Channel {
	if buffer <= 0 {
		buffer = 256
	}
	return &Channel{ch: make(chan Event, buffer)}
}

// Publish enqueues an event without blocking. Events are dropped when the
// buffer is full or the channel has been closed.
func (c *Channel) Publish(ev Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- ev:
	default:
	}
}

// Events returns the receive side for the single consumer.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Close ends the stream. Late Publish calls become no-ops.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
