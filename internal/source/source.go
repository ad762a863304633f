// Package source defines the boundary between damper and the kernel-side
// packet diversion mechanism (e.g. Linux NFQUEUE). Binding to a real
// queue is a platform-specific concern kept out of this package: it
// only specifies the interface and ships an in-memory implementation
// used by tests and local experimentation.
package source

import "context"

// Event is a packet delivered by the source, copied into user space along
// with the firewall mark the kernel attached to it.
type Event struct {
	ID      uint32
	Payload []byte
	Mark    uint32
}

// Source delivers packet events and accepts verdicts for them. A real
// implementation binds to an IPv4 diversion queue (queue id, copy-mode
// full packet, internal capacity nfqlen) and translates Accept/Drop
// into the kernel's verdict call.
type Source interface {
	// Receive blocks until a packet arrives or ctx is done. It must retry
	// internally on EINTR-equivalent interruptions and only return an
	// error for a genuine, unrecoverable failure.
	Receive(ctx context.Context) (Event, error)

	// Accept tells the source to release the packet identified by id,
	// sending size bytes of payload downstream.
	Accept(id uint32, size int, payload []byte) error

	// Drop tells the source to discard the packet identified by id.
	Drop(id uint32) error

	Close() error
}
