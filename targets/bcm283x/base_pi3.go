//go:build tinygo && pi3

package bcm283x

// PeripheralBase is the ARM physical address of the BCM2837 peripherals
const PeripheralBase = 0x3F000000
