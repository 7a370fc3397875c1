// Package sim drives the closed-loop simulation: integrate one span, publish
// the measurement, block for a command, fold it into the next step's input.
package sim

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seralt/cstrd/internal/plant"
)

// Integrator advances the state across one time span under a constant
// control input.
type Integrator interface {
	Span(sys plant.System, x0 plant.State, t0, t1 float64, u float64) (plant.State, error)
}

// Publisher emits one step's measurement. A non-nil error means nothing was
// emitted; the loop logs it and continues.
type Publisher interface {
	Publish(ctx context.Context, ca, temp float64) error
}

// Receiver blocks for the next control value within its bounded policy.
type Receiver interface {
	Receive(ctx context.Context) (float64, bool)
}

type Metric interface {
	Name() string
	Observe(x plant.State, u float64, t float64)
	Value() float64
	Reset()
}

// Loop owns the evolving state vector and the control-input schedule for one
// run. No other component keeps a reference to either.
type Loop struct {
	sys     plant.System
	integ   Integrator
	pub     Publisher
	recv    Receiver
	metrics []Metric
	log     zerolog.Logger
}

func New(sys plant.System, integ Integrator, pub Publisher, recv Receiver, log zerolog.Logger) *Loop {
	return &Loop{
		sys:   sys,
		integ: integ,
		pub:   pub,
		recv:  recv,
		log:   log,
	}
}

func (l *Loop) AddMetric(m Metric) { l.metrics = append(l.metrics, m) }

type Result struct {
	Times    []float64
	Ca       []float64
	Temp     []float64
	Controls []float64 // control input actually applied per step
	Final    plant.State
	Metrics  map[string]float64

	Published int
	Accepted  int
	Held      int
}

// Run advances the state across the whole time grid. The step from grid[i]
// to grid[i+1] is integrated under u[i+1] (one-step-ahead convention); a
// command accepted after that step overwrites u[i+1], so it takes effect on
// the next iteration's lookup, never retroactively. u[0] is the seed value
// and is never written.
//
// When the receiver comes back empty the control slot is left untouched:
// the value already scheduled stays in force ("hold last scheduled value").
//
// Integration failure aborts the run; telemetry rejection and command
// exhaustion are logged and the run continues.
func (l *Loop) Run(ctx context.Context, x0 plant.State, grid []float64, u []float64) (*Result, error) {
	if err := ValidateGrid(grid); err != nil {
		return nil, err
	}
	if len(u) != len(grid) {
		return nil, fmt.Errorf("control schedule has %d entries for %d grid points", len(u), len(grid))
	}
	if len(x0) != l.sys.Dim() || len(x0) != 2 {
		// The loop publishes the (Ca, T) pair; it only drives 2-state plants.
		return nil, plant.ErrDimensionMismatch
	}

	for _, m := range l.metrics {
		m.Reset()
	}

	steps := len(grid) - 1
	result := &Result{
		Times:    make([]float64, 0, steps+1),
		Ca:       make([]float64, 0, steps+1),
		Temp:     make([]float64, 0, steps+1),
		Controls: make([]float64, 0, steps),
		Metrics:  make(map[string]float64),
	}

	x := x0.Clone()
	result.Times = append(result.Times, grid[0])
	result.Ca = append(result.Ca, x[0])
	result.Temp = append(result.Temp, x[1])

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			result.Final = x
			return result, ctx.Err()
		default:
		}

		applied := u[i+1]
		next, err := l.integ.Span(l.sys, x, grid[i], grid[i+1], applied)
		if err != nil {
			result.Final = x
			return result, fmt.Errorf("integrate step %d: %w", i, err)
		}
		x = next

		result.Times = append(result.Times, grid[i+1])
		result.Ca = append(result.Ca, x[0])
		result.Temp = append(result.Temp, x[1])
		result.Controls = append(result.Controls, applied)

		for _, m := range l.metrics {
			m.Observe(x, applied, grid[i+1])
		}

		l.log.Info().Int("step", i).
			Float64("ca", x[0]).Float64("temp", x[1]).Float64("tc", applied).
			Msg("step complete")

		if err := l.pub.Publish(ctx, x[0], x[1]); err != nil {
			l.log.Error().Err(err).Int("step", i).Msg("measurement not published")
		} else {
			result.Published++
		}

		if v, ok := l.recv.Receive(ctx); ok {
			u[i+1] = v
			result.Accepted++
		} else {
			l.log.Warn().Int("step", i).Float64("tc", u[i+1]).
				Msg("no command received, holding last scheduled value")
			result.Held++
		}
	}

	result.Final = x
	for _, m := range l.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}
