package tracemon

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"pitimer/host/serial"
)

// Monitor is a connection to the firmware's trace UART
type Monitor struct {
	port     serial.Port
	src      io.Reader
	verifier *Verifier
	log      zerolog.Logger
}

// Connect opens the trace UART on device with the firmware defaults
func Connect(device string, log zerolog.Logger) (*Monitor, error) {
	return ConnectWithConfig(serial.DefaultConfig(device), log)
}

// ConnectWithConfig opens the trace UART with a custom serial config
func ConnectWithConfig(cfg *serial.Config, log zerolog.Logger) (*Monitor, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Msg("connected")
	m := NewMonitor(port, log)
	m.src = timeoutReader{port}
	return m, nil
}

// timeoutReader turns the io.EOF tarm/serial reports on a read timeout
// into an empty read, so a live port is polled until ctx is cancelled
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

// NewMonitor wraps an already open trace source
func NewMonitor(port serial.Port, log zerolog.Logger) *Monitor {
	return &Monitor{
		port:     port,
		src:      port,
		verifier: NewVerifier(log),
		log:      log,
	}
}

// Verifier returns the verifier fed by Watch
func (m *Monitor) Verifier() *Verifier {
	return m.verifier
}

// Watch verifies the trace until the port closes or ctx is cancelled
func (m *Monitor) Watch(ctx context.Context) (Report, error) {
	if err := Run(ctx, m.src, m.verifier); err != nil {
		return m.verifier.Report(), fmt.Errorf("monitor: %w", err)
	}
	return m.verifier.Report(), nil
}

// Close closes the trace port
func (m *Monitor) Close() error {
	if m.port == nil {
		return nil
	}
	return m.port.Close()
}

// LogReport writes a one-line summary of r
func LogReport(log zerolog.Logger, r Report) {
	ev := log.Info()
	if !r.OK() {
		ev = log.Error()
	}
	ev.Uint64("frames", r.Frames).
		Uint64("bad_frames", r.BadFrames).
		Uint64("seq_gaps", r.SeqGaps).
		Uint64("scheduled", r.Scheduled).
		Uint64("fired", r.Fired).
		Uint64("stale", r.Stale).
		Uint64("shrinks", r.Shrinks).
		Uint64("collisions", r.Collisions).
		Uint64("late_min_us", uint64(r.MinLate)).
		Uint64("late_max_us", uint64(r.MaxLate)).
		Uint64("late_mean_us", uint64(r.MeanLate())).
		Int("violations", len(r.Violations)).
		Msg("trace summary")
}
