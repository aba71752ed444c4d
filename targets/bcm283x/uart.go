//go:build tinygo

package bcm283x

// UARTClock is the PL011 reference clock set by the firmware (init_uart_clock)
const UARTClock = 48000000

const (
	frTXFF    = 1 << 5
	frBUSY    = 1 << 3
	lcrhFEN   = 1 << 4
	lcrhWLEN8 = 3 << 5
	crUARTEN  = 1 << 0
	crTXE     = 1 << 8
	crRXE     = 1 << 9

	gpioAlt0 = 4
)

// UART is the PL011 on GPIO14 (TX) / GPIO15 (RX)
type UART struct {
	configured bool
}

// UART0 is the primary PL011
var UART0 = &UART{}

// Configure routes the pins and sets 8N1 at baud with FIFOs enabled.
// Interrupts stay masked; the UART is polled.
func (u *UART) Configure(baud uint32) {
	if baud == 0 {
		baud = 115200
	}
	uart0.CR.Set(0)
	for uart0.FR.Get()&frBUSY != 0 {
	}

	sel := gpio.GPFSEL[1].Get()
	sel &^= 7<<12 | 7<<15
	sel |= gpioAlt0<<12 | gpioAlt0<<15
	gpio.GPFSEL[1].Set(sel)

	uart0.ICR.Set(0x7FF)
	uart0.IMSC.Set(0)

	// Divisor in 1/64 units: clock*4/baud, rounded
	div := (UARTClock*4 + baud/2) / baud
	uart0.IBRD.Set(div >> 6)
	uart0.FBRD.Set(div & 0x3F)
	uart0.LCRH.Set(lcrhFEN | lcrhWLEN8)
	uart0.CR.Set(crUARTEN | crTXE | crRXE)
	u.configured = true
}

// WriteByte blocks until the transmit FIFO has room
func (u *UART) WriteByte(c byte) error {
	putc(c)
	return nil
}

func putc(c byte) {
	for uart0.FR.Get()&frTXFF != 0 {
	}
	uart0.DR.Set(uint32(c))
}

// Write sends p. Writes before Configure are discarded.
func (u *UART) Write(p []byte) (int, error) {
	if !u.configured {
		return len(p), nil
	}
	for _, c := range p {
		putc(c)
	}
	return len(p), nil
}
