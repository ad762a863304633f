package source

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Receive once the source has been closed.
var ErrClosed = errors.New("source: closed")

// Verdict records a single Accept/Drop call observed by ChannelSource,
// for tests to assert against.
type Verdict struct {
	ID      uint32
	Accept  bool
	Size    int
	Payload []byte
}

// ChannelSource is an in-memory Source backed by a channel of pending
// events. It stands in for a real NFQUEUE binding in tests and for local
// experimentation with the shaping engine.
type ChannelSource struct {
	events chan Event

	mu       sync.Mutex
	closed   bool
	verdicts []Verdict
}

// NewChannelSource creates a ChannelSource with the given inbound event
// buffer capacity (the in-memory analogue of the nfqlen config directive).
func NewChannelSource(capacity int) *ChannelSource {
	if capacity <= 0 {
		capacity = 1
	}
	return &ChannelSource{events: make(chan Event, capacity)}
}

// Inject enqueues an event as if it had been diverted by the kernel. It
// returns false if the source is closed or the buffer is full.
func (c *ChannelSource) Inject(ev Event) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}
	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

// Receive implements Source.
func (c *ChannelSource) Receive(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return Event{}, ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Accept implements Source.
func (c *ChannelSource) Accept(id uint32, size int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	c.verdicts = append(c.verdicts, Verdict{ID: id, Accept: true, Size: size, Payload: cp})
	return nil
}

// Drop implements Source.
func (c *ChannelSource) Drop(id uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts = append(c.verdicts, Verdict{ID: id, Accept: false})
	return nil
}

// Close implements Source.
func (c *ChannelSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}

// Verdicts returns a copy of all verdicts observed so far, in issue order.
func (c *ChannelSource) Verdicts() []Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Verdict, len(c.verdicts))
	copy(out, c.verdicts)
	return out
}
