//go:build tinygo && pi4_highperi

package bcm283x

// PeripheralBase is the BCM2711 peripheral window in full 35-bit address mode
const PeripheralBase = 0x47E000000
