//go:build tinygo && (pi3 || pi4_lowperi || pi4_highperi)

// Firmware demo for the Raspberry Pi 3/4: drives the scheduler from system
// timer channel 1 and streams every scheduler event to the host over UART0.
package main

import (
	"sync/atomic"

	"pitimer/core"
	"pitimer/protocol"
	"pitimer/targets/bcm283x"
)

const (
	traceBaud         = 250000
	heartbeatInterval = 500 * 1000 // 500ms
)

var (
	ring     core.EventRing
	timerIRQ = bcm283x.TimerIRQ(bcm283x.SchedulerChannel)

	heartbeatDue atomic.Bool
	heartbeats   atomic.Uint32
	oneShots     atomic.Uint32
)

// handle_irq is called from the IRQ vector with interrupts masked
//
//export handle_irq
func handleIRQ() {
	if timerIRQ.Pending() {
		core.HandleInterrupt()
	}
}

func main() {
	bcm283x.UART0.Configure(traceBaud)
	core.SetDebugWriter(debugLine)
	core.SetDebugEnabled(true)
	core.DebugPrintln("[TIMER] pitimer trace " + protocol.Version)

	core.SetTimerDriver(bcm283x.NewTimerChannel(bcm283x.SchedulerChannel))
	core.SetIRQLine(timerIRQ)
	core.SetEventRecorder(&ring)

	trace := protocol.NewTraceWriter(func(frame []byte) {
		bcm283x.UART0.Write(frame)
	})

	// Deliberately out of order, the scheduler fires them by due time
	for _, d := range []core.Micros{
		core.Millis(30), core.Millis(10), core.Millis(20), core.Millis(5), core.Millis(25),
	} {
		core.Schedule(d, func() { oneShots.Add(1) })
	}
	core.Schedule(heartbeatInterval, heartbeat)

	var events [core.EventRingSize]core.Event
	for {
		if heartbeatDue.Swap(false) {
			core.Schedule(heartbeatInterval, heartbeat)
		}
		if evs := ring.Drain(events[:0]); len(evs) > 0 {
			trace.WriteEvents(evs)
		}
		core.Sleep(core.Millis(1))
	}
}

// debugLine shares the trace UART. The trailing sync byte lets the host
// decoder pick up the next frame right after the text.
func debugLine(s string) {
	bcm283x.UART0.Write([]byte(s))
	bcm283x.UART0.Write([]byte{'\r', '\n', protocol.MessageValueSync})
}

// heartbeat runs in interrupt context and may not schedule itself;
// the main loop re-arms it.
func heartbeat() {
	heartbeats.Add(1)
	heartbeatDue.Store(true)
}
