//go:build tinygo

package bcm283x

import "pitimer/core"

// GPU interrupt numbers of the system timer match channels
const (
	IRQTimer0 = 0
	IRQTimer1 = 1
	IRQTimer2 = 2
	IRQTimer3 = 3
)

// IRQLine is one GPU interrupt routed through the ARM interrupt controller.
// Only lines 0-31 (pending/enable register 1) are supported.
type IRQLine struct {
	mask uint32
}

// NewIRQLine returns the controller line for GPU interrupt n
func NewIRQLine(n int) *IRQLine {
	return &IRQLine{mask: 1 << uint(n&31)}
}

// TimerIRQ returns the line of system timer compare channel n
func TimerIRQ(n int) *IRQLine {
	return NewIRQLine(IRQTimer0 + n)
}

func (l *IRQLine) Activate() {
	irq.Enable1.Set(l.mask)
}

func (l *IRQLine) Deactivate() {
	irq.Disable1.Set(l.mask)
}

// Pending reports whether the line is raised at the controller
func (l *IRQLine) Pending() bool {
	return irq.Pending1.Get()&l.mask != 0
}

var _ core.IRQLine = (*IRQLine)(nil)
