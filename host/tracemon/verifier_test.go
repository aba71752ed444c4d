package tracemon

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitimer/core"
)

func fire(idx uint32, due, at core.Micros) core.Event {
	return core.Event{Kind: core.EvtFire, Index: idx, Due: due, At: at}
}

func shrink(claimed uint32) core.Event {
	return core.Event{Kind: core.EvtShrink, Index: claimed}
}

func TestVerifierCleanTrace(t *testing.T) {
	v := NewVerifier(zerolog.Nop())

	for _, ev := range []core.Event{
		{Kind: core.EvtSchedule, Index: 0, Due: 1100},
		{Kind: core.EvtArm, Due: 1100},
		{Kind: core.EvtSchedule, Index: 1, Due: 1200},
		fire(0, 1100, 1102),
		fire(1, 1200, 1206),
	} {
		v.Observe(ev)
	}

	r := v.Report()
	require.True(t, r.OK(), "violations: %v", r.Violations)
	assert.Equal(t, uint64(5), r.Events)
	assert.Equal(t, uint64(2), r.Scheduled)
	assert.Equal(t, uint64(1), r.Arms)
	assert.Equal(t, uint64(2), r.Fired)
	assert.Equal(t, core.Micros(2), r.MinLate)
	assert.Equal(t, core.Micros(6), r.MaxLate)
	assert.Equal(t, core.Micros(4), r.MeanLate())
}

func TestVerifierEmptyReport(t *testing.T) {
	r := NewVerifier(zerolog.Nop()).Report()
	assert.True(t, r.OK())
	assert.Zero(t, r.MinLate)
	assert.Zero(t, r.MeanLate())
}

func TestVerifierEarlyFire(t *testing.T) {
	v := NewVerifier(zerolog.Nop())
	v.Observe(fire(0, 1100, 1099))

	r := v.Report()
	require.Len(t, r.Violations, 1)
	assert.Equal(t, "fired early", r.Violations[0].Reason)
	assert.Zero(t, r.MinLate)
}

func TestVerifierOutOfOrderWithinCycle(t *testing.T) {
	v := NewVerifier(zerolog.Nop())
	v.Observe(fire(0, 1200, 1200))
	v.Observe(fire(1, 1100, 1201))

	r := v.Report()
	require.Len(t, r.Violations, 1)
	assert.Contains(t, r.Violations[0].Reason, "out of order")
}

func TestVerifierShrinkStartsNewCycle(t *testing.T) {
	v := NewVerifier(zerolog.Nop())
	v.Observe(fire(0, 1100, 1100))
	v.Observe(fire(1, 1200, 1200))
	v.Observe(shrink(2))
	// Ordinals restart at 0 after a shrink
	v.Observe(fire(0, 1300, 1301))

	r := v.Report()
	assert.True(t, r.OK(), "violations: %v", r.Violations)
	assert.Equal(t, uint64(1), r.Shrinks)
}

func TestVerifierIndexFiredTwice(t *testing.T) {
	v := NewVerifier(zerolog.Nop())
	v.Observe(fire(0, 1100, 1100))
	v.Observe(fire(0, 1200, 1200))

	r := v.Report()
	require.Len(t, r.Violations, 1)
	assert.Equal(t, "fired twice", r.Violations[0].Reason)
}

func TestVerifierMaxLate(t *testing.T) {
	v := NewVerifier(zerolog.Nop())
	v.MaxLate = 10
	v.Observe(fire(0, 1100, 1110))
	v.Observe(fire(1, 1200, 1211))

	r := v.Report()
	require.Len(t, r.Violations, 1)
	assert.Equal(t, uint32(1), r.Violations[0].Event.Index)
	assert.Equal(t, "late by 11us", r.Violations[0].Reason)
}

func TestVerifierCountsStaleAndCollisions(t *testing.T) {
	v := NewVerifier(zerolog.Nop())
	v.Observe(core.Event{Kind: core.EvtStale})
	v.Observe(core.Event{Kind: core.EvtCollision, Due: 1100})
	v.Observe(core.Event{Kind: core.EvtCollision, Due: 1200})

	r := v.Report()
	assert.Equal(t, uint64(1), r.Stale)
	assert.Equal(t, uint64(2), r.Collisions)
}

func TestVerifierSequenceGaps(t *testing.T) {
	v := NewVerifier(zerolog.Nop())
	for _, seq := range []uint8{14, 15, 0, 1, 3} {
		v.Frame(seq)
	}

	r := v.Report()
	assert.Equal(t, uint64(5), r.Frames)
	assert.Equal(t, uint64(1), r.SeqGaps)
}

func TestViolationString(t *testing.T) {
	vi := Violation{Event: fire(2, 1200, 1100), Reason: "fired early"}
	assert.Equal(t, "fired early: [TIMER] FIRE idx=2 due=1200 at=1100", vi.String())
}
