package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/seralt/cstrd/internal/plant"
	"github.com/seralt/cstrd/internal/reactor"
	"github.com/seralt/cstrd/internal/solve"
)

type capturePublisher struct {
	ca   []float64
	temp []float64
	err  error
}

func (p *capturePublisher) Publish(ctx context.Context, ca, temp float64) error {
	if p.err != nil {
		return p.err
	}
	p.ca = append(p.ca, ca)
	p.temp = append(p.temp, temp)
	return nil
}

// scriptReceiver replays scripted results, then reports exhaustion forever.
type scriptReceiver struct {
	values []float64
	oks    []bool
	calls  int
}

func (r *scriptReceiver) Receive(ctx context.Context) (float64, bool) {
	i := r.calls
	r.calls++
	if i >= len(r.oks) {
		return 0, false
	}
	return r.values[i], r.oks[i]
}

// recordingIntegrator captures the control input applied to each span.
type recordingIntegrator struct {
	inner   Integrator
	applied []float64
}

func (r *recordingIntegrator) Span(sys plant.System, x0 plant.State, t0, t1 float64, u float64) (plant.State, error) {
	r.applied = append(r.applied, u)
	return r.inner.Span(sys, x0, t0, t1, u)
}

type failingIntegrator struct{}

func (f *failingIntegrator) Span(sys plant.System, x0 plant.State, t0, t1 float64, u float64) (plant.State, error) {
	return nil, &plant.StepError{Time: t0, State: x0.Clone(), Wrapped: plant.ErrModelDomain}
}

func newTestLoop(pub Publisher, recv Receiver) *Loop {
	model := reactor.New(reactor.DefaultFeed())
	return New(model, solve.NewRK45(), pub, recv, zerolog.Nop())
}

func TestRunExhaustedLeavesScheduleUntouched(t *testing.T) {
	pub := &capturePublisher{}
	recv := &scriptReceiver{}
	loop := newTestLoop(pub, recv)

	grid := []float64{0, 1, 2}
	u := []float64{300, 300, 300}

	result, err := loop.Run(context.Background(), reactor.SeedState(), grid, u)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(pub.ca) != 2 {
		t.Fatalf("expected 2 published measurements, got %d", len(pub.ca))
	}
	for i := range pub.ca {
		if math.IsNaN(pub.ca[i]) || math.IsNaN(pub.temp[i]) {
			t.Errorf("step %d published non-finite values", i)
		}
	}
	for i, v := range u {
		if v != 300 {
			t.Errorf("u[%d] mutated to %f under exhaustion", i, v)
		}
	}
	if result.Accepted != 0 || result.Held != 2 || result.Published != 2 {
		t.Errorf("unexpected counters: %+v", result)
	}
	if result.Final[1] <= 0 {
		t.Errorf("final temperature should stay positive, got %g", result.Final[1])
	}
}

func TestRunAcceptedCommandAffectsNextStepOnly(t *testing.T) {
	pub := &capturePublisher{}
	recv := &scriptReceiver{values: []float64{305}, oks: []bool{true}}
	rec := &recordingIntegrator{inner: solve.NewRK45()}

	model := reactor.New(reactor.DefaultFeed())
	loop := New(model, rec, pub, recv, zerolog.Nop())

	grid := []float64{0, 1, 2}
	u := []float64{300, 300, 300}

	result, err := loop.Run(context.Background(), reactor.SeedState(), grid, u)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Step 0 ran under the original schedule; the accepted value landed in
	// u[1] afterwards, where only a later lookup would see it.
	if rec.applied[0] != 300 {
		t.Errorf("step 0 should have used 300, used %f", rec.applied[0])
	}
	if u[1] != 305 {
		t.Errorf("u[1] should hold the accepted 305, got %f", u[1])
	}
	if rec.applied[1] != 300 {
		t.Errorf("step 1 uses u[2], expected 300, used %f", rec.applied[1])
	}
	if result.Accepted != 1 {
		t.Errorf("expected 1 accepted command, got %d", result.Accepted)
	}
}

func TestRunOneStepAheadIndexing(t *testing.T) {
	pub := &capturePublisher{}
	recv := &scriptReceiver{}
	rec := &recordingIntegrator{inner: solve.NewRK45()}

	model := reactor.New(reactor.DefaultFeed())
	loop := New(model, rec, pub, recv, zerolog.Nop())

	grid := []float64{0, 1, 2}
	u := []float64{300, 301, 302}

	if _, err := loop.Run(context.Background(), reactor.SeedState(), grid, u); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The step into grid[i+1] uses u[i+1]; u[0] is only ever a seed.
	want := []float64{301, 302}
	for i, w := range want {
		if rec.applied[i] != w {
			t.Errorf("step %d applied %f, want %f", i, rec.applied[i], w)
		}
	}
	if u[0] != 300 {
		t.Errorf("u[0] must never be overwritten, got %f", u[0])
	}
}

func TestRunIntegrationFailureAborts(t *testing.T) {
	pub := &capturePublisher{}
	recv := &scriptReceiver{}
	model := reactor.New(reactor.DefaultFeed())
	loop := New(model, &failingIntegrator{}, pub, recv, zerolog.Nop())

	grid := []float64{0, 1, 2}
	u := []float64{300, 300, 300}

	_, err := loop.Run(context.Background(), reactor.SeedState(), grid, u)
	if !errors.Is(err, plant.ErrModelDomain) {
		t.Errorf("expected wrapped model-domain error, got %v", err)
	}
	if len(pub.ca) != 0 {
		t.Error("nothing should be published for a failed step")
	}
}

func TestRunPublishRejectionContinues(t *testing.T) {
	pub := &capturePublisher{err: errors.New("telemetry rejected")}
	recv := &scriptReceiver{}
	loop := newTestLoop(pub, recv)

	grid := []float64{0, 1, 2}
	u := []float64{300, 300, 300}

	result, err := loop.Run(context.Background(), reactor.SeedState(), grid, u)
	if err != nil {
		t.Fatalf("publish rejection must not abort the run: %v", err)
	}
	if result.Published != 0 {
		t.Errorf("expected 0 published, got %d", result.Published)
	}
	if recv.calls != 2 {
		t.Errorf("receiver should still run each step, got %d calls", recv.calls)
	}
}

func TestRunValidation(t *testing.T) {
	loop := newTestLoop(&capturePublisher{}, &scriptReceiver{})

	tests := []struct {
		name string
		x0   plant.State
		grid []float64
		u    []float64
	}{
		{"short grid", reactor.SeedState(), []float64{0}, []float64{300}},
		{"non-increasing grid", reactor.SeedState(), []float64{0, 1, 1}, []float64{300, 300, 300}},
		{"schedule length", reactor.SeedState(), []float64{0, 1, 2}, []float64{300, 300}},
		{"state dim", plant.State{1.0}, []float64{0, 1, 2}, []float64{300, 300, 300}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loop.Run(context.Background(), tt.x0, tt.grid, tt.u); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRunMetrics(t *testing.T) {
	pub := &capturePublisher{}
	recv := &scriptReceiver{}
	loop := newTestLoop(pub, recv)
	loop.AddMetric(NewControlEffort(300))

	grid := []float64{0, 1, 2}
	u := []float64{305, 305, 305}

	result, err := loop.Run(context.Background(), reactor.SeedState(), grid, u)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	effort, ok := result.Metrics["control_effort"]
	if !ok {
		t.Fatal("control_effort metric missing from result")
	}
	if math.Abs(effort-5.0) > 1e-12 {
		t.Errorf("expected mean effort 5, got %f", effort)
	}
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := newTestLoop(&capturePublisher{}, &scriptReceiver{})
	grid := []float64{0, 1, 2}
	u := []float64{300, 300, 300}

	_, err := loop.Run(ctx, reactor.SeedState(), grid, u)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
