//go:build !tinygo

package core

import "sync"

// platformMasker is a no-op on regular Go. Tests that need masking
// install a simulated masker with SetInterruptMasker.
type platformMasker struct{}

func (platformMasker) DisableInterrupts() uintptr { return 0 }

func (platformMasker) RestoreInterrupts(state uintptr) {}

// coreLock serializes producers running on different goroutines, which
// stand in for different cores on regular Go.
type coreLock struct {
	mu sync.Mutex
}

func (l *coreLock) lock() {
	l.mu.Lock()
}

func (l *coreLock) unlock() {
	l.mu.Unlock()
}
