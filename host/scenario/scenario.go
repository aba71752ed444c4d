// Package scenario replays scheduling scenarios described in YAML against
// the simulated system timer.
package scenario

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"pitimer/core"
	"pitimer/host/tracemon"
	"pitimer/sim"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid scenario")

const (
	// DefaultStep is the simulated time advanced per iteration
	DefaultStep core.Micros = 100

	// timerChannel is the compare channel the firmware uses
	timerChannel = 1
)

// Callback is one Schedule call: at At microseconds into the run the
// producer schedules Name with Delay
type Callback struct {
	Name  string      `yaml:"name"`
	At    core.Micros `yaml:"at"`
	Delay core.Micros `yaml:"delay"`
}

// Scenario is a scripted run of the scheduler
type Scenario struct {
	Name      string      `yaml:"name"`
	Start     core.Micros `yaml:"start"`    // initial counter value
	RunFor    core.Micros `yaml:"run_for"`  // simulated run length
	Step      core.Micros `yaml:"step"`     // producer granularity
	MaxLate   core.Micros `yaml:"max_late"` // 0 disables the check
	Callbacks []Callback  `yaml:"callbacks"`
}

// Load reads and validates a scenario file
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a YAML scenario
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.RunFor == 0 {
		return fmt.Errorf("%w: run_for must be positive", ErrInvalid)
	}
	if sc.Step == 0 {
		sc.Step = DefaultStep
	}
	for i, cb := range sc.Callbacks {
		if cb.Name == "" {
			return fmt.Errorf("%w: callback %d has no name", ErrInvalid, i)
		}
		if cb.At > sc.RunFor {
			return fmt.Errorf("%w: callback %s scheduled after the run ends", ErrInvalid, cb.Name)
		}
		if cb.Delay >= 1<<32 {
			return fmt.Errorf("%w: callback %s delay exceeds the 32-bit comparator", ErrInvalid, cb.Name)
		}
	}
	return nil
}

// Firing is one callback invocation
type Firing struct {
	Name string
	Due  core.Micros
	At   core.Micros
}

// Result is the outcome of a scenario run
type Result struct {
	Firings []Firing
	// Missing lists callbacks that never ran: still pending at the end of
	// the run or replaced by a later callback with the same due time
	Missing []string
	Stats   core.Stats
	Report  tracemon.Report
}

// OK reports whether the run finished without ordering violations
func (r *Result) OK() bool {
	return r.Report.OK()
}

// Run replays sc on a fresh simulated timer
func Run(ctx context.Context, sc *Scenario, log zerolog.Logger) (*Result, error) {
	log = log.With().Str("scenario", sc.Name).Logger()

	tm := sim.NewSystemTimer(sc.Start)
	s := sim.NewScheduler(tm, timerChannel)
	v := tracemon.NewVerifier(log)
	v.MaxLate = sc.MaxLate
	s.SetEventRecorder(v)

	cbs := slices.Clone(sc.Callbacks)
	slices.SortStableFunc(cbs, func(a, b Callback) int {
		return cmp.Compare(a.At, b.At)
	})

	var (
		mu      sync.Mutex
		firings []Firing
		ran     = make([]bool, len(cbs))
	)

	next := 0
	elapsed := core.Micros(0)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for next < len(cbs) && cbs[next].At <= elapsed {
			i, cb := next, cbs[next]
			// The counter does not move outside Advance, so this is the
			// due time Schedule computes
			due := tm.Now() + cb.Delay
			s.Schedule(cb.Delay, func() {
				mu.Lock()
				defer mu.Unlock()
				firings = append(firings, Firing{Name: cb.Name, Due: due, At: tm.Now()})
				ran[i] = true
			})
			log.Debug().Str("callback", cb.Name).Uint64("due", uint64(due)).Msg("scheduled")
			next++
		}

		if elapsed >= sc.RunFor {
			break
		}
		step := min(sc.Step, sc.RunFor-elapsed)
		tm.Advance(step)
		elapsed += step
	}

	res := &Result{
		Stats:  s.Stats(),
		Report: v.Report(),
	}
	mu.Lock()
	res.Firings = firings
	for i, ok := range ran {
		if !ok {
			res.Missing = append(res.Missing, cbs[i].Name)
		}
	}
	mu.Unlock()

	log.Info().
		Int("fired", len(res.Firings)).
		Int("missing", len(res.Missing)).
		Uint64("shrinks", res.Stats.Shrinks).
		Bool("ok", res.OK()).
		Msg("scenario finished")
	return res, nil
}
