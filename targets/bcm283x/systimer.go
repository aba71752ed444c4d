//go:build tinygo

package bcm283x

import "pitimer/core"

// SchedulerChannel is the compare channel owned by the scheduler.
// Channels 0 and 2 belong to the GPU firmware.
const SchedulerChannel = 1

// TimerChannel is one compare channel of the system timer.
// It implements core.TimerDriver.
type TimerChannel struct {
	n    int
	mask uint32
}

// NewTimerChannel returns the driver for compare channel n (0-3)
func NewTimerChannel(n int) *TimerChannel {
	return &TimerChannel{n: n, mask: 1 << uint(n)}
}

func (t *TimerChannel) CounterLow() uint32 {
	return sysTimer.CLO.Get()
}

func (t *TimerChannel) CounterHigh() uint32 {
	return sysTimer.CHI.Get()
}

// Arm loads the compare register. The hardware compares against CLO only,
// so the match fires once the low word equals due.
func (t *TimerChannel) Arm(due uint32) {
	sysTimer.C[t.n].Set(due)
}

func (t *TimerChannel) Matched() bool {
	return sysTimer.CS.Get()&t.mask != 0
}

// Acknowledge clears the match flag. CS is write-1-to-clear, so the other
// channels' flags are left alone.
func (t *TimerChannel) Acknowledge() {
	sysTimer.CS.Set(t.mask)
}

var _ core.TimerDriver = (*TimerChannel)(nil)
