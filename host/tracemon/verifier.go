// Package tracemon reads the scheduler trace stream and checks it against
// the scheduler's ordering guarantees.
package tracemon

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"pitimer/core"
)

// Violation is a fire event that broke an ordering guarantee
type Violation struct {
	Event  core.Event
	Reason string
}

func (v Violation) String() string {
	return v.Reason + ": " + v.Event.String()
}

// Report summarizes everything the verifier has seen
type Report struct {
	Frames    uint64
	BadFrames uint64
	SeqGaps   uint64
	Events    uint64

	Scheduled  uint64
	Arms       uint64
	Fired      uint64
	Stale      uint64
	Shrinks    uint64
	Collisions uint64

	MinLate   core.Micros
	MaxLate   core.Micros
	TotalLate core.Micros

	Violations []Violation
}

// MeanLate is the average lateness of all fire events
func (r Report) MeanLate() core.Micros {
	if r.Fired == 0 {
		return 0
	}
	return r.TotalLate / core.Micros(r.Fired)
}

// OK reports whether no violation was found
func (r Report) OK() bool {
	return len(r.Violations) == 0
}

// Verifier checks fire events as they arrive:
//   - a callback never runs before its due time
//   - within one cycle (between shrinks) due times never decrease
//   - within one cycle an index fires at most once
//
// It is safe for concurrent use.
type Verifier struct {
	// MaxLate flags fire events later than this; 0 disables the check
	MaxLate core.Micros

	log zerolog.Logger

	mu      sync.Mutex
	report  Report
	lastDue core.Micros
	fired   map[uint32]bool
	seq     uint8
	haveSeq bool
}

// NewVerifier creates a verifier logging violations to log
func NewVerifier(log zerolog.Logger) *Verifier {
	return &Verifier{
		log:    log,
		fired:  make(map[uint32]bool),
		report: Report{MinLate: math.MaxUint64},
	}
}

// Frame records a decoded frame's sequence number and counts gaps
func (v *Verifier) Frame(seq uint8) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.report.Frames++
	if v.haveSeq && seq != (v.seq+1)&0x0F {
		v.report.SeqGaps++
		v.log.Warn().Uint8("expected", (v.seq+1)&0x0F).Uint8("got", seq).Msg("frame sequence gap")
	}
	v.seq = seq
	v.haveSeq = true
}

// BadFrame counts a frame that failed to decode
func (v *Verifier) BadFrame(err error) {
	v.mu.Lock()
	v.report.BadFrames++
	v.mu.Unlock()
	v.log.Warn().Err(err).Msg("dropping bad frame")
}

// Observe feeds one scheduler event to the verifier
func (v *Verifier) Observe(ev core.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.report.Events++
	switch ev.Kind {
	case core.EvtSchedule:
		v.report.Scheduled++
	case core.EvtArm:
		v.report.Arms++
	case core.EvtStale:
		v.report.Stale++
	case core.EvtCollision:
		v.report.Collisions++
	case core.EvtShrink:
		v.report.Shrinks++
		v.lastDue = 0
		clear(v.fired)
	case core.EvtFire:
		v.fire(ev)
	}
	v.log.Trace().Stringer("event", ev).Msg("trace")
}

// Record makes the verifier a core.EventRecorder, checking a scheduler
// in-process without going through the wire format
func (v *Verifier) Record(ev core.Event) {
	v.Observe(ev)
}

var _ core.EventRecorder = (*Verifier)(nil)

func (v *Verifier) fire(ev core.Event) {
	v.report.Fired++

	if ev.At < ev.Due {
		v.violate(ev, "fired early")
	} else {
		late := ev.At - ev.Due
		v.report.TotalLate += late
		v.report.MinLate = min(v.report.MinLate, late)
		v.report.MaxLate = max(v.report.MaxLate, late)
		if v.MaxLate > 0 && late > v.MaxLate {
			v.violate(ev, fmt.Sprintf("late by %dus", late))
		}
	}

	if ev.Due < v.lastDue {
		v.violate(ev, fmt.Sprintf("out of order after due %d", v.lastDue))
	}
	v.lastDue = max(v.lastDue, ev.Due)

	if v.fired[ev.Index] {
		v.violate(ev, "fired twice")
	}
	v.fired[ev.Index] = true
}

func (v *Verifier) violate(ev core.Event, reason string) {
	v.report.Violations = append(v.report.Violations, Violation{Event: ev, Reason: reason})
	v.log.Error().Stringer("event", ev).Str("reason", reason).Msg("ordering violation")
}

// Report returns a snapshot of the counters and violations
func (v *Verifier) Report() Report {
	v.mu.Lock()
	defer v.mu.Unlock()

	r := v.report
	r.Violations = append([]Violation(nil), v.report.Violations...)
	if r.MinLate == math.MaxUint64 {
		r.MinLate = 0
	}
	return r
}
