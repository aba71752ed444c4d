package core

import (
	"sync"
	"sync/atomic"
)

// Process-wide scheduler, created on the first Schedule call and never
// torn down.
var (
	defaultOnce      sync.Once
	defaultScheduler atomic.Pointer[Scheduler]
	defaultRecorder  EventRecorder
)

// SetEventRecorder sets the recorder used by the process-wide scheduler.
// Call it before the first Schedule.
func SetEventRecorder(r EventRecorder) {
	defaultRecorder = r
}

// Default returns the process-wide scheduler, creating it on first use
// from the registered timer driver and interrupt line.
func Default() *Scheduler {
	defaultOnce.Do(func() {
		s := NewScheduler(MustTimer(), irqLine)
		if defaultRecorder != nil {
			s.SetEventRecorder(defaultRecorder)
		}
		defaultScheduler.Store(s)
	})
	return defaultScheduler.Load()
}

// Now returns the current free-running counter value
func Now() Micros {
	return NewClock(MustTimer()).Now()
}

// Sleep pauses the calling core for at least d microseconds
func Sleep(d Micros) {
	NewClock(MustTimer()).Sleep(d)
}

// Schedule runs fn from the timer interrupt after delay microseconds.
// See Scheduler.Schedule.
func Schedule(delay Micros, fn func()) {
	Default().Schedule(delay, fn)
}

// HandleInterrupt is the entry point for the platform's timer interrupt
// vector. Interrupts taken before the first Schedule are ignored; the
// scheduler is never created from interrupt context.
func HandleInterrupt() {
	if s := defaultScheduler.Load(); s != nil {
		s.HandleInterrupt()
	}
}
