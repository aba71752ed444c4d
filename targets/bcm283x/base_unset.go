//go:build tinygo && !pi3 && !pi4_lowperi && !pi4_highperi

package bcm283x

// Building without a board tag fails here with
// "undefined: compileError_BOARD_TAG_NOT_SPECIFIED".
// Pick one of: -tags pi3, -tags pi4_lowperi, -tags pi4_highperi.

const PeripheralBase = 0

func init() {
	compileError_BOARD_TAG_NOT_SPECIFIED()
}
