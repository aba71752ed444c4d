// Command pitimer-host checks the timer scheduler from the host side: it
// verifies the trace stream of a running board, or replays YAML scenarios
// on the simulated system timer.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pitimer/core"
	"pitimer/host/scenario"
	"pitimer/host/serial"
	"pitimer/host/tracemon"
	"pitimer/protocol"
)

// Config holds the command-line options
type Config struct {
	LogLevel string
	JSON     bool

	Device      string
	Baud        int
	ReadTimeout time.Duration
	Duration    time.Duration
	MaxLate     uint64
}

const (
	exitVerifyFailed = 1
	exitError        = 2
)

// Set via ldflags during build.
var version = "dev"

var (
	cfg Config
	log zerolog.Logger
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var cErr *codedError
		if errors.As(err, &cErr) {
			if cErr.err != nil {
				fmt.Fprintln(os.Stderr, cErr.Error())
			}
			os.Exit(cErr.code)
		}
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	cfg = Config{}
	rootCmd := &cobra.Command{
		Use:               "pitimer-host",
		Short:             "Host tools for the Raspberry Pi timer scheduler",
		PersistentPreRunE: setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           version + " (trace format " + protocol.Version + ")",
	}
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Log in JSON instead of console format")
	rootCmd.PersistentFlags().Uint64Var(&cfg.MaxLate, "max-late", 0, "Flag callbacks running more than this many microseconds late (0 = off)")

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Verify the trace stream of a running board",
		Example: `  pitimer-host monitor --device /dev/ttyUSB0
  pitimer-host monitor --device /dev/ttyUSB0 --duration 30s --max-late 20`,
		Args: cobra.NoArgs,
		RunE: runMonitor,
	}
	monitorCmd.Flags().StringVar(&cfg.Device, "device", "/dev/ttyUSB0", "Serial device the trace UART is attached to")
	monitorCmd.Flags().IntVar(&cfg.Baud, "baud", serial.DefaultBaud, "Baud rate")
	monitorCmd.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", 100*time.Millisecond, "Serial read timeout")
	monitorCmd.Flags().DurationVar(&cfg.Duration, "duration", 0, "Stop after this long (0 = until interrupted)")

	simulateCmd := &cobra.Command{
		Use:     "simulate scenario.yaml...",
		Short:   "Replay scheduling scenarios on the simulated system timer",
		Example: `  pitimer-host simulate host/scenario/testdata/*.yaml`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    runSimulate,
	}

	rootCmd.AddCommand(monitorCmd, simulateCmd)
	return rootCmd
}

func setup(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errWithCode(fmt.Errorf("--log-level: %w", err), exitError)
	}
	if cfg.JSON {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	log = log.Level(level).With().Timestamp().Logger()
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	m, err := tracemon.ConnectWithConfig(&serial.Config{
		Device:      cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	}, log)
	if err != nil {
		return errWithCode(err, exitError)
	}
	defer m.Close()
	m.Verifier().MaxLate = core.Micros(cfg.MaxLate)

	report, err := m.Watch(ctx)
	tracemon.LogReport(log, report)
	if err != nil {
		return errWithCode(err, exitError)
	}
	if !report.OK() {
		return errWithCode(nil, exitVerifyFailed)
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, path := range args {
		sc, err := scenario.Load(path)
		if err != nil {
			return errWithCode(err, exitError)
		}
		if cfg.MaxLate > 0 {
			sc.MaxLate = core.Micros(cfg.MaxLate)
		}

		res, err := scenario.Run(cmd.Context(), sc, log)
		if err != nil {
			return errWithCode(fmt.Errorf("%s: %w", path, err), exitError)
		}

		for _, f := range res.Firings {
			log.Info().
				Str("callback", f.Name).
				Uint64("due", uint64(f.Due)).
				Uint64("at", uint64(f.At)).
				Uint64("late_us", uint64(f.At-f.Due)).
				Msg("fired")
		}
		for _, name := range res.Missing {
			log.Warn().Str("callback", name).Msg("never ran")
		}
		tracemon.LogReport(log.With().Str("scenario", sc.Name).Logger(), res.Report)
		if !res.OK() {
			failed++
		}
	}
	if failed > 0 {
		return errWithCode(fmt.Errorf("%d of %d scenarios failed verification", failed, len(args)), exitVerifyFailed)
	}
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error {
	return e.err
}
