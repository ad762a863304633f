// Package shaping implements the fixed-capacity priority buffer: the
// admission-with-eviction and max-priority release logic that decides
// which packets wait and which are let go.
//
// It deliberately uses a linear scan for both min (admission) and max
// (release) rather than a heap: queue capacity is small in practice,
// scans are cache-friendly, and admission needs a conditional replace on
// top of the min search that a heap would complicate without real
// benefit at this scale.
package shaping

import "math"

// EmptyPriority is the sentinel priority of an unoccupied slot. A slot is
// occupied iff its priority is strictly greater than EmptyPriority.
var EmptyPriority = math.Inf(-1)

// Slot holds one packet admitted into the buffer.
type Slot struct {
	ID       uint32
	Size     int
	Payload  []byte
	Priority float64
}

// Occupied reports whether s currently holds a packet.
func (s Slot) Occupied() bool {
	return s.Priority > EmptyPriority
}

// Buffer is the fixed-capacity, priority-indexed packet buffer (config
// directive "packets", capacity Q).
type Buffer struct {
	slots []Slot
}

// New creates a Buffer with capacity packets, all slots initially empty.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	slots := make([]Slot, capacity)
	for i := range slots {
		slots[i].Priority = EmptyPriority
	}
	return &Buffer{slots: slots}
}

// Len returns the buffer's capacity (Q).
func (b *Buffer) Len() int { return len(b.slots) }

// AdmitResult describes the effect of an Admit call.
type AdmitResult struct {
	// Admitted is true if the new packet was installed into a slot.
	Admitted bool
	// Evicted is true if an occupied slot's previous packet was evicted
	// to make room (only meaningful when Admitted is true).
	Evicted     bool
	EvictedID   uint32
	EvictedSize int
}

// Admit finds the minimum-priority slot (ties broken toward keeping the
// incumbent, i.e. strict "<"), and if its priority is less than the new
// packet's priority, evict it (if occupied) and install the new packet
// there. Otherwise the new packet itself is rejected.
func (b *Buffer) Admit(id uint32, payload []byte, size int, priority float64) AdmitResult {
	idx := b.minIndex()
	min := b.slots[idx].Priority

	if !(min < priority) {
		return AdmitResult{Admitted: false}
	}

	res := AdmitResult{Admitted: true}
	if b.slots[idx].Occupied() {
		res.Evicted = true
		res.EvictedID = b.slots[idx].ID
		res.EvictedSize = b.slots[idx].Size
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)

	b.slots[idx] = Slot{ID: id, Size: size, Payload: cp, Priority: priority}
	return res
}

// Release finds the maximum-priority slot and, if any slot is occupied,
// empties it and returns its packet.
func (b *Buffer) Release() (Slot, bool) {
	idx := 0
	max := b.slots[0].Priority
	for i, s := range b.slots {
		if s.Priority > max {
			max = s.Priority
			idx = i
		}
	}

	if !b.slots[idx].Occupied() {
		return Slot{}, false
	}

	out := b.slots[idx]
	b.slots[idx] = Slot{Priority: EmptyPriority}
	return out, true
}

// Slots returns a copy of the current slot contents, payloads included,
// for inspection and tests.
func (b *Buffer) Slots() []Slot {
	out := make([]Slot, len(b.slots))
	copy(out, b.slots)
	for i := range out {
		out[i].Payload = append([]byte(nil), b.slots[i].Payload...)
	}
	return out
}

func (b *Buffer) minIndex() int {
	idx := 0
	min := b.slots[0].Priority
	for i, s := range b.slots {
		if s.Priority < min {
			min = s.Priority
			idx = i
		}
	}
	return idx
}
