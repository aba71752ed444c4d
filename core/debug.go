package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// EventKind identifies a scheduler event
type EventKind uint8

// Event kinds. The numeric values are part of the trace wire format.
const (
	EvtSchedule  EventKind = 1 // callback inserted
	EvtArm       EventKind = 2 // compare register written
	EvtFire      EventKind = 3 // callback claimed and run
	EvtStale     EventKind = 4 // interrupt taken with nothing to claim
	EvtShrink    EventKind = 5 // drained sequence reclaimed
	EvtCollision EventKind = 6 // due time already present, callback replaced
)

// String returns the trace name of the event kind
func (k EventKind) String() string {
	switch k {
	case EvtSchedule:
		return "SCHEDULE"
	case EvtArm:
		return "ARM"
	case EvtFire:
		return "FIRE"
	case EvtStale:
		return "STALE"
	case EvtShrink:
		return "SHRINK"
	case EvtCollision:
		return "COLLISION"
	default:
		return "UNKNOWN"
	}
}

// Event captures one scheduler action for post-mortem analysis
type Event struct {
	Kind  EventKind
	Index uint32 // ordinal position in the pending sequence
	Due   Micros // due time involved, if any
	At    Micros // counter value when the event was recorded
}

// String formats the event for a DebugWriter
func (e Event) String() string {
	return "[TIMER] " + e.Kind.String() +
		" idx=" + utoa(uint64(e.Index)) +
		" due=" + utoa(uint64(e.Due)) +
		" at=" + utoa(uint64(e.At))
}

// EventRecorder receives scheduler events. Record is called from both
// producer and interrupt context and must not block.
type EventRecorder interface {
	Record(ev Event)
}

const (
	EventRingSize = 32 // Keep last 32 events
)

type ringSlot struct {
	seq atomic.Uint32 // write sequence + 1 once the slot is complete, 0 while writing
	ev  Event
}

// EventRing is a fixed-size, non-blocking EventRecorder.
// Writers claim slots with an atomic increment, so producer and interrupt
// context may record concurrently. A single reader drains it from normal
// context; entries overwritten before they were drained are counted as
// dropped.
type EventRing struct {
	slots   [EventRingSize]ringSlot
	head    atomic.Uint32
	tail    uint32
	dropped atomic.Uint32
}

// Record stores an event, overwriting the oldest one when the ring is full
func (r *EventRing) Record(ev Event) {
	n := r.head.Add(1) - 1
	s := &r.slots[n%EventRingSize]
	s.seq.Store(0)
	s.ev = ev
	s.seq.Store(n + 1)
}

// Drain appends all completed, not yet drained events to dst
func (r *EventRing) Drain(dst []Event) []Event {
	head := r.head.Load()
	if head-r.tail > EventRingSize {
		r.dropped.Add(head - r.tail - EventRingSize)
		r.tail = head - EventRingSize
	}
	for r.tail != head {
		s := &r.slots[r.tail%EventRingSize]
		seq := s.seq.Load()
		if seq == 0 {
			// Writer still busy with this slot, pick it up next time
			break
		}
		ev := s.ev
		if seq != r.tail+1 || s.seq.Load() != seq {
			r.dropped.Add(1)
		} else {
			dst = append(dst, ev)
		}
		r.tail++
	}
	return dst
}

// Dropped returns the number of events lost to overwrites
func (r *EventRing) Dropped() uint32 {
	return r.dropped.Load()
}

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call it from interrupt context.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DumpEvents drains the ring and writes every event through the debug writer
func DumpEvents(r *EventRing) {
	var buf [EventRingSize]Event
	for _, ev := range r.Drain(buf[:0]) {
		DebugPrintln(ev.String())
	}
	if n := r.Dropped(); n > 0 {
		DebugPrintln("[TIMER] dropped=" + utoa(uint64(n)))
	}
}
