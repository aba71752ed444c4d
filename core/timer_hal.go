package core

// Micros is a point in time or a duration in microseconds of the
// free-running system counter.
type Micros uint64

// Millis converts milliseconds to Micros.
func Millis(ms uint64) Micros {
	return Micros(ms * 1000)
}

// Seconds converts seconds to Micros.
func Seconds(s uint64) Micros {
	return Micros(s * 1000000)
}

// TimerDriver is the abstract interface to one compare channel of a
// free-running 64-bit microsecond counter.
// Platform-specific implementations handle the actual register access.
type TimerDriver interface {
	// CounterLow returns the low 32 bits of the free-running counter
	CounterLow() uint32

	// CounterHigh returns the high 32 bits of the free-running counter
	CounterHigh() uint32

	// Arm writes the low 32 bits of a due time into the compare register.
	// The hardware only compares the low word, so a due time must be
	// reached within 2^32 microseconds of arming.
	Arm(due uint32)

	// Matched reports whether the match flag of this channel is set
	Matched() bool

	// Acknowledge clears the match flag of this channel
	Acknowledge()
}

// IRQLine enables and disables the timer interrupt at the interrupt controller.
type IRQLine interface {
	Activate()
	Deactivate()
}

// InterruptMasker masks interrupts on the calling core while the
// producer side of the scheduler holds exclusive access.
type InterruptMasker interface {
	DisableInterrupts() uintptr
	RestoreInterrupts(state uintptr)
}

// Global singletons used by the package-level helpers.
var (
	timerDriver TimerDriver
	irqLine     IRQLine
)

// SetTimerDriver is called by target-specific code to register its driver.
func SetTimerDriver(d TimerDriver) {
	timerDriver = d
}

// SetIRQLine is called by target-specific code to register the timer
// interrupt line.
func SetIRQLine(l IRQLine) {
	irqLine = l
}

// MustTimer returns the configured driver or panics if missing.
func MustTimer() TimerDriver {
	if timerDriver == nil {
		panic("timer driver not configured")
	}
	return timerDriver
}
