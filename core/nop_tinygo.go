//go:build tinygo && arm

package core

import "device/arm"

// nop executes a single ARM no-op instruction
func nop() {
	arm.Asm("nop")
}
