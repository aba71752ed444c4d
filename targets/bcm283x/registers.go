//go:build tinygo

// Package bcm283x drives the BCM2837/BCM2711 peripherals the timer
// scheduler needs: the free-running system timer, the legacy ARM interrupt
// controller and the PL011 UART used for trace output.
//
// The peripheral window is selected with one of the pi3, pi4_lowperi or
// pi4_highperi build tags.
package bcm283x

import (
	"runtime/volatile"
	"unsafe"
)

// Peripheral offsets from PeripheralBase
const (
	sysTimerOffset = 0x003000
	irqOffset      = 0x00B200
	gpioOffset     = 0x200000
	uart0Offset    = 0x201000
)

// sysTimerRegs is the BCM283x system timer block.
// CS holds one match flag per compare channel; writing 1 clears it.
type sysTimerRegs struct {
	CS  volatile.Register32
	CLO volatile.Register32
	CHI volatile.Register32
	C   [4]volatile.Register32
}

// irqRegs is the legacy ARM interrupt controller, starting at IRQ basic pending
type irqRegs struct {
	BasicPending volatile.Register32
	Pending1     volatile.Register32
	Pending2     volatile.Register32
	FIQControl   volatile.Register32
	Enable1      volatile.Register32
	Enable2      volatile.Register32
	EnableBasic  volatile.Register32
	Disable1     volatile.Register32
	Disable2     volatile.Register32
	DisableBasic volatile.Register32
}

type gpioRegs struct {
	GPFSEL [6]volatile.Register32
}

type pl011Regs struct {
	DR     volatile.Register32 // 0x00
	RSRECR volatile.Register32 // 0x04
	_      [4]uint32
	FR     volatile.Register32 // 0x18
	_      uint32
	ILPR   volatile.Register32 // 0x20
	IBRD   volatile.Register32 // 0x24
	FBRD   volatile.Register32 // 0x28
	LCRH   volatile.Register32 // 0x2C
	CR     volatile.Register32 // 0x30
	IFLS   volatile.Register32 // 0x34
	IMSC   volatile.Register32 // 0x38
	RIS    volatile.Register32 // 0x3C
	MIS    volatile.Register32 // 0x40
	ICR    volatile.Register32 // 0x44
}

var (
	sysTimer = (*sysTimerRegs)(unsafe.Pointer(uintptr(PeripheralBase + sysTimerOffset)))
	irq      = (*irqRegs)(unsafe.Pointer(uintptr(PeripheralBase + irqOffset)))
	gpio     = (*gpioRegs)(unsafe.Pointer(uintptr(PeripheralBase + gpioOffset)))
	uart0    = (*pl011Regs)(unsafe.Pointer(uintptr(PeripheralBase + uart0Offset)))
)
