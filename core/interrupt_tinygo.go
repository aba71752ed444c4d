//go:build tinygo

package core

import (
	"runtime/interrupt"
	"sync/atomic"
)

// platformMasker disables interrupts on the calling core
type platformMasker struct{}

func (platformMasker) DisableInterrupts() uintptr {
	return uintptr(interrupt.Disable())
}

func (platformMasker) RestoreInterrupts(state uintptr) {
	interrupt.Restore(interrupt.State(state))
}

// coreLock is a spinlock shared between cores. It is only ever taken with
// interrupts masked on the calling core and never from interrupt context.
type coreLock struct {
	held atomic.Uint32
}

func (l *coreLock) lock() {
	for !l.held.CompareAndSwap(0, 1) {
		nop()
	}
}

func (l *coreLock) unlock() {
	l.held.Store(0)
}
