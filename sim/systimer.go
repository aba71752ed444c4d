// Package sim simulates the BCM283x system timer peripheral so the
// scheduler can run on a development machine.
//
// The simulated counter only moves inside Advance. Advance runs on the
// simulated core, so it waits while a producer has interrupts masked and
// time stands still while a handler runs; handlers may call Set but never
// Advance.
package sim

import (
	"sync"

	"pitimer/core"
)

// Channels is the number of compare channels
const Channels = 4

// SystemTimer is a free-running 64-bit microsecond counter with four
// 32-bit compare channels and a status register holding one match flag
// per channel. Each channel drives its own interrupt line.
type SystemTimer struct {
	mu       sync.Mutex // registers
	counter  uint64
	compare  [Channels]uint32
	status   uint32 // match flags
	enabled  uint32 // interrupt controller enable bits
	handlers [Channels]func()

	cpu sync.Mutex // held while interrupts are masked or a handler runs
}

// NewSystemTimer creates a timer whose counter starts at start
func NewSystemTimer(start core.Micros) *SystemTimer {
	return &SystemTimer{counter: uint64(start)}
}

// Channel returns a driver for one compare channel
func (t *SystemTimer) Channel(n int) *Channel {
	if n < 0 || n >= Channels {
		panic("sim: compare channel out of range")
	}
	return &Channel{timer: t, n: n}
}

// SetHandler installs the interrupt handler for a channel's line
func (t *SystemTimer) SetHandler(n int, fn func()) {
	t.mu.Lock()
	t.handlers[n] = fn
	t.mu.Unlock()
}

// Now returns the counter value
func (t *SystemTimer) Now() core.Micros {
	t.mu.Lock()
	defer t.mu.Unlock()
	return core.Micros(t.counter)
}

// Set moves the counter without raising any match, like a counter reset
// or time spent with the comparators ignored
func (t *SystemTimer) Set(now core.Micros) {
	t.mu.Lock()
	t.counter = uint64(now)
	t.mu.Unlock()
}

// Compare returns the value in a channel's compare register
func (t *SystemTimer) Compare(n int) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.compare[n]
}

// Status returns the match flags
func (t *SystemTimer) Status() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Advance moves the counter forward by d. Each time the low word of the
// counter reaches a compare value the channel's match flag is set and, if
// its line is enabled, its handler runs with the counter at exactly that
// value. Matches are processed in counter order.
func (t *SystemTimer) Advance(d core.Micros) {
	t.cpu.Lock()
	defer t.cpu.Unlock()

	t.mu.Lock()
	target := t.counter + uint64(d)
	for {
		// A handler may have moved the counter past the target with Set
		if t.counter >= target {
			t.mu.Unlock()
			return
		}
		at, hits := t.nextMatchLocked(target)
		if hits == 0 {
			t.counter = target
			t.mu.Unlock()
			return
		}
		t.counter = at
		t.status |= hits
		t.mu.Unlock()

		t.deliverLocked()

		t.mu.Lock()
	}
}

// AdvanceTo advances the counter to an absolute value. Values in the past
// are ignored.
func (t *SystemTimer) AdvanceTo(at core.Micros) {
	if now := t.Now(); at > now {
		t.Advance(at - now)
	}
}

// ForceMatch sets a channel's match flag and raises its interrupt as if the
// comparator had fired, without moving the counter
func (t *SystemTimer) ForceMatch(n int) {
	t.cpu.Lock()
	defer t.cpu.Unlock()

	t.mu.Lock()
	t.status |= 1 << n
	t.mu.Unlock()

	t.deliverLocked()
}

// nextMatchLocked finds the first counter value in (counter, target] at
// which a comparator matches, and the channels matching there.
func (t *SystemTimer) nextMatchLocked(target uint64) (uint64, uint32) {
	var (
		best uint64
		hits uint32
	)
	span := target - t.counter
	for n := 0; n < Channels; n++ {
		// A compare value equal to the current low word only matches
		// again after a full wrap
		dist := uint64(t.compare[n] - uint32(t.counter))
		if dist == 0 {
			dist = 1 << 32
		}
		if dist > span {
			continue
		}
		switch {
		case hits == 0 || dist < best:
			best, hits = dist, 1<<n
		case dist == best:
			hits |= 1 << n
		}
	}
	return t.counter + best, hits
}

// deliverLocked runs the handlers of every enabled line with its match
// flag set. The caller holds the cpu lock.
func (t *SystemTimer) deliverLocked() {
	t.mu.Lock()
	pending := t.status & t.enabled
	handlers := t.handlers
	t.mu.Unlock()

	for n := 0; n < Channels; n++ {
		if pending&(1<<n) != 0 && handlers[n] != nil {
			handlers[n]()
		}
	}
}

// DisableInterrupts masks interrupt delivery on the simulated core
func (t *SystemTimer) DisableInterrupts() uintptr {
	t.cpu.Lock()
	return 0
}

// RestoreInterrupts unmasks delivery and takes any interrupt that became
// pending while masked
func (t *SystemTimer) RestoreInterrupts(state uintptr) {
	t.deliverLocked()
	t.cpu.Unlock()
}

// Channel is one compare channel of a SystemTimer. It implements
// core.TimerDriver and core.IRQLine.
type Channel struct {
	timer *SystemTimer
	n     int
}

func (c *Channel) CounterLow() uint32 {
	c.timer.mu.Lock()
	defer c.timer.mu.Unlock()
	return uint32(c.timer.counter)
}

func (c *Channel) CounterHigh() uint32 {
	c.timer.mu.Lock()
	defer c.timer.mu.Unlock()
	return uint32(c.timer.counter >> 32)
}

func (c *Channel) Arm(due uint32) {
	c.timer.mu.Lock()
	c.timer.compare[c.n] = due
	c.timer.mu.Unlock()
}

func (c *Channel) Matched() bool {
	return c.timer.Status()&(1<<c.n) != 0
}

func (c *Channel) Acknowledge() {
	c.timer.mu.Lock()
	c.timer.status &^= 1 << c.n
	c.timer.mu.Unlock()
}

func (c *Channel) Activate() {
	c.timer.mu.Lock()
	c.timer.enabled |= 1 << c.n
	c.timer.mu.Unlock()
}

func (c *Channel) Deactivate() {
	c.timer.mu.Lock()
	c.timer.enabled &^= 1 << c.n
	c.timer.mu.Unlock()
}

// Active reports whether the channel's interrupt line is enabled
func (c *Channel) Active() bool {
	c.timer.mu.Lock()
	defer c.timer.mu.Unlock()
	return c.timer.enabled&(1<<c.n) != 0
}

// NewScheduler wires a core.Scheduler to channel n of the timer: the
// channel is its driver and interrupt line, the timer masks its
// interrupts and the scheduler handles the channel's line.
func NewScheduler(t *SystemTimer, n int) *core.Scheduler {
	ch := t.Channel(n)
	s := core.NewScheduler(ch, ch)
	s.SetInterruptMasker(t)
	t.SetHandler(n, s.HandleInterrupt)
	return s
}
