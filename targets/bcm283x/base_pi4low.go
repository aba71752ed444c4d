//go:build tinygo && pi4_lowperi

package bcm283x

// PeripheralBase is the BCM2711 peripheral window in low-peripheral mode
const PeripheralBase = 0xFE000000
