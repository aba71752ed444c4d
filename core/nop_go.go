//go:build !tinygo || !arm

package core

var nopSink uint32

// nop keeps the SleepCycles loop from being optimized away on builds
// without an inline nop instruction
func nop() {
	nopSink++
}
