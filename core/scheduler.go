package core

import (
	"cmp"
	"slices"
	"sync/atomic"
)

// ArmLead is how far ahead of the counter a compare value is placed when
// the entry to arm is already due. The comparator only matches on the
// transition to the written value, so a value at or behind the counter
// would not fire until the low word wraps.
const ArmLead Micros = 2

// slot holds at most one not yet run callback.
type slot struct {
	due Micros
	fn  atomic.Pointer[func()]
}

// take moves the callback out of the slot. Only the first caller gets it.
func (s *slot) take() func() {
	p := s.fn.Swap(nil)
	if p == nil {
		return nil
	}
	return *p
}

// Stats is a snapshot of the scheduler state
type Stats struct {
	Pending    int    // entries in the current sequence, run or not
	Claim      uint64 // next ordinal the interrupt handler may claim
	Done       uint64 // ordinal of the last finished callback
	Retired    uint64 // finished callbacks since the last shrink
	NextArmed  Micros // value in the compare register, 0 if none
	Scheduled  uint64
	Fired      uint64
	Stale      uint64
	Shrinks    uint64
	Collisions uint64
}

// Scheduler multiplexes one hardware compare channel across any number of
// delayed callbacks.
//
// Schedule (producer) and HandleInterrupt (consumer) coordinate without
// the consumer ever taking a lock:
//   - the sequence of slots, ordered by due time, is only restructured by
//     the producer while it holds exclusive access. It is published through
//     an atomic pointer and only grows, either in place past the length
//     any reader can see or into a fresh array, until the processed prefix
//     is dropped.
//   - the claim cursor is only advanced by the consumer. A successful
//     compare-and-swap from idx to idx+1 gives that handler sole ownership
//     of slot idx; the callback is moved out with an atomic swap.
//   - the processed prefix is dropped only when every claimed slot has
//     retired, so no handler can still be using it.
//
// Entries behind the claim cursor were due when they were claimed and
// the producer computes new due times inside its critical section, so a
// new entry always sorts at or after the claim cursor and already claimed
// ordinals never move.
type Scheduler struct {
	clock *Clock
	drv   TimerDriver
	line  IRQLine
	mask  InterruptMasker
	rec   EventRecorder

	lock    coreLock
	started bool

	pending   atomic.Pointer[[]*slot]
	nextArmed atomic.Uint64
	claim     atomic.Uint64
	retired   atomic.Uint64 // done cursor + 1, 0 while nothing finished

	scheduled  atomic.Uint64
	fired      atomic.Uint64
	stale      atomic.Uint64
	shrinks    atomic.Uint64
	collisions atomic.Uint64
}

// NewScheduler creates a scheduler driving the given compare channel.
// The interrupt line is activated on the first Schedule call; line may be
// nil when the platform enables it elsewhere.
func NewScheduler(drv TimerDriver, line IRQLine) *Scheduler {
	return &Scheduler{
		clock: NewClock(drv),
		drv:   drv,
		line:  line,
		mask:  platformMasker{},
	}
}

// SetInterruptMasker replaces the platform interrupt masker.
// Must be called before the scheduler is shared.
func (s *Scheduler) SetInterruptMasker(m InterruptMasker) {
	s.mask = m
}

// SetEventRecorder installs a recorder for scheduler events.
// Must be called before the scheduler is shared.
func (s *Scheduler) SetEventRecorder(r EventRecorder) {
	s.rec = r
}

// Clock returns the clock the scheduler reads time from
func (s *Scheduler) Clock() *Clock {
	return s.clock
}

// Schedule registers fn to run once, from the timer interrupt, no earlier
// than delay microseconds from now.
//
// A callback whose due time equals that of a pending entry replaces it;
// only the last one registered for that microsecond runs. fn must be short,
// must not block or panic, and must not call Schedule itself.
// Delays must stay below 2^32 microseconds (about 71 minutes) because the
// comparator only sees the low word of the counter.
//
// Producers on different cores are serialized by a spinlock, but the
// handler never takes it: the timer interrupt must be routed to a core
// whose interrupt mask the producers hold, which on BCM283x is core 0.
func (s *Scheduler) Schedule(delay Micros, fn func()) {
	if fn == nil {
		return
	}

	state := s.mask.DisableInterrupts()
	s.lock.lock()

	if !s.started {
		s.start()
	}

	// Everything claimed has finished, so the handler holds no reference
	// into the processed prefix and it can be dropped
	if r := s.retired.Load(); r > 0 && r == s.claim.Load() {
		s.shrink()
	}

	due := s.clock.Now() + delay
	s.insert(due, fn)

	armed := Micros(s.nextArmed.Load())
	if armed == 0 || due < armed || armed < s.clock.Now() {
		s.arm(due)
	}

	s.lock.unlock()
	s.mask.RestoreInterrupts(state)
}

// start prepares the hardware on first use: a stale match flag is cleared
// before the line is enabled so it does not fire immediately.
func (s *Scheduler) start() {
	s.drv.Acknowledge()
	if s.line != nil {
		s.line.Activate()
	}
	s.started = true
	DebugPrintln("[TIMER] scheduler started")
}

// shrink drops the processed prefix of the sequence and resets the
// cursors so ordinals start again at 0. Entries not yet claimed are kept,
// together with the compare value armed for the first of them.
// Caller must hold the producer lock.
func (s *Scheduler) shrink() {
	cur := s.load()
	claimed := int(s.claim.Load())
	rest := make([]*slot, len(cur)-claimed, len(cur)-claimed+1)
	copy(rest, cur[claimed:])

	if len(rest) == 0 {
		s.nextArmed.Store(0)
	}
	s.claim.Store(0)
	s.retired.Store(0)
	s.pending.Store(&rest)
	s.shrinks.Add(1)
	s.record(EvtShrink, uint32(claimed), 0)
}

// insert places fn into the sequence at its due time.
// Caller must hold the producer lock.
func (s *Scheduler) insert(due Micros, fn func()) {
	cur := s.load()
	// Claimed entries are due no later than now, so the new one sorts after
	// them. An equal due time there is not a collision: that callback ran.
	claimed := int(s.claim.Load())
	i, found := slices.BinarySearchFunc(cur[claimed:], due, func(e *slot, t Micros) int {
		return cmp.Compare(e.due, t)
	})
	i += claimed

	if found {
		cur[i].fn.Store(&fn)
		s.collisions.Add(1)
		s.record(EvtCollision, uint32(i), due)
		return
	}

	sl := &slot{due: due}
	sl.fn.Store(&fn)

	var next []*slot
	if i == len(cur) && len(cur) < cap(cur) {
		// Readers only see len(cur) elements, the slot past it is ours
		next = append(cur, sl)
	} else {
		next = make([]*slot, len(cur)+1, 2*(len(cur)+1))
		copy(next, cur[:i])
		next[i] = sl
		copy(next[i+1:], cur[i:])
	}
	s.pending.Store(&next)
	s.scheduled.Add(1)
	s.record(EvtSchedule, uint32(i), due)
}

// arm writes due into the compare register, moving it just ahead of the
// counter if it has already passed.
func (s *Scheduler) arm(due Micros) {
	at := s.clock.Now()
	if due <= at {
		due = at + ArmLead
	}
	s.nextArmed.Store(uint64(due))
	s.drv.Arm(uint32(due))
	s.record(EvtArm, 0, due)
}

// HandleInterrupt services the compare channel. It runs in interrupt
// context: it takes no lock and runs at most one callback.
func (s *Scheduler) HandleInterrupt() {
	// The status register also reports matches of other channels
	if !s.drv.Matched() {
		return
	}
	s.drv.Acknowledge()

	idx := s.claim.Load()
	cur := s.load()
	if idx >= uint64(len(cur)) {
		s.stale.Add(1)
		s.record(EvtStale, uint32(idx), 0)
		return
	}

	// Only the low word is compared, an earlier wrap can match before the
	// entry is really due
	if due := cur[idx].due; !s.clock.IsDue(due) {
		s.arm(due)
		s.stale.Add(1)
		s.record(EvtStale, uint32(idx), due)
		return
	}

	if !s.claim.CompareAndSwap(idx, idx+1) {
		// Another handler claimed this ordinal, or a producer on another
		// core shrank the sequence and reset the cursor. The match is
		// already acknowledged, so arm for the entry now at the cursor.
		next := s.claim.Load()
		if cur := s.load(); next < uint64(len(cur)) {
			s.arm(cur[next].due)
		}
		s.stale.Add(1)
		return
	}

	// Reload: the producer may have published a newer sequence between the
	// first load and the claim. Ordinal idx is ours in every version.
	cur = s.load()
	sl := cur[idx]
	if fn := sl.take(); fn != nil {
		s.record(EvtFire, uint32(idx), sl.due)
		fn()
		s.fired.Add(1)
		// A producer on another core may have inserted behind us meanwhile
		cur = s.load()
	}

	if next := idx + 1; next < uint64(len(cur)) {
		s.arm(cur[next].due)
	}

	s.retired.Store(idx + 1)
}

// Stats returns a snapshot of the cursors and counters
func (s *Scheduler) Stats() Stats {
	st := Stats{
		Pending:    len(s.load()),
		Claim:      s.claim.Load(),
		Retired:    s.retired.Load(),
		NextArmed:  Micros(s.nextArmed.Load()),
		Scheduled:  s.scheduled.Load(),
		Fired:      s.fired.Load(),
		Stale:      s.stale.Load(),
		Shrinks:    s.shrinks.Load(),
		Collisions: s.collisions.Load(),
	}
	if st.Retired > 0 {
		st.Done = st.Retired - 1
	}
	return st
}

func (s *Scheduler) load() []*slot {
	if p := s.pending.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *Scheduler) record(kind EventKind, idx uint32, due Micros) {
	if s.rec == nil {
		return
	}
	s.rec.Record(Event{Kind: kind, Index: idx, Due: due, At: s.clock.Now()})
}
