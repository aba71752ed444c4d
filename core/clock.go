package core

// Clock reads time from a TimerDriver.
type Clock struct {
	drv TimerDriver
}

// NewClock creates a Clock on top of the given driver
func NewClock(drv TimerDriver) *Clock {
	return &Clock{drv: drv}
}

// Now returns the 64-bit free-running counter value.
// The counter is split over two 32-bit registers; the high word is read
// before and after the low word and the read is repeated if it changed,
// so a carry between the two reads never produces a torn value.
func (c *Clock) Now() Micros {
	for {
		hi := c.drv.CounterHigh()
		lo := c.drv.CounterLow()
		if c.drv.CounterHigh() == hi {
			return Micros(uint64(hi)<<32 | uint64(lo))
		}
	}
}

// IsDue reports whether t has been reached. A zero t is always due.
func (c *Clock) IsDue(t Micros) bool {
	if t == 0 {
		return true
	}
	return c.Now() >= t
}

// Sleep busy-waits for at least d microseconds
func (c *Clock) Sleep(d Micros) {
	if d == 0 {
		return
	}
	until := c.Now() + d
	for !c.IsDue(until) {
	}
}

// SleepCycles busy-waits for n no-op instructions
func SleepCycles(n uint32) {
	for i := uint32(0); i < n; i++ {
		nop()
	}
}
