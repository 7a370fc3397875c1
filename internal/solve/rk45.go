package solve

import (
	"math"

	"github.com/seralt/cstrd/internal/plant"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is an adaptive Dormand-Prince integrator.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	minStep  float64
	tol      float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
		minStep:  1e-10,
		tol:      1e-6,
	}
}

// Span integrates sys from x0 at t0 to t1 under a constant control input u
// (zero-order hold) and returns the state at t1 only. It fails with a wrapped
// plant error if the adaptive step collapses below the minimum or the state
// leaves the model's domain mid-span.
func (r *RK45) Span(sys plant.System, x0 plant.State, t0, t1 float64, u float64) (plant.State, error) {
	if len(x0) != sys.Dim() {
		return nil, plant.ErrDimensionMismatch
	}
	if !x0.IsValid() {
		return nil, &plant.StepError{Time: t0, State: x0.Clone(), Wrapped: plant.ErrInvalidState}
	}
	if !inDomain(sys, x0) {
		return nil, &plant.StepError{Time: t0, State: x0.Clone(), Wrapped: plant.ErrModelDomain}
	}

	x := x0.Clone()
	t := t0
	dt := t1 - t0

	for t < t1 {
		if dt > t1-t {
			dt = t1 - t
		}
		if t+dt == t {
			// Remaining span is below float resolution.
			break
		}

		xNew, errRatio, dtNext, err := r.step(sys, x, u, t, dt)
		if err != nil {
			// A trial stage left the model's domain. Retry with a smaller
			// step before treating the span as undefined.
			if dt/2 >= r.minStep {
				dt /= 2
				continue
			}
			return nil, &plant.StepError{Time: t, State: x.Clone(), Wrapped: err}
		}
		if errRatio > 1 {
			// Error estimate too large: retry from the same point with the
			// shrunken step.
			if dtNext < r.minStep {
				return nil, &plant.StepError{Time: t, State: x.Clone(), Wrapped: plant.ErrStepTooSmall}
			}
			dt = dtNext
			continue
		}

		t += dt
		x = xNew
		dt = dtNext
	}

	if !x.IsValid() {
		return nil, &plant.StepError{Time: t1, State: x.Clone(), Wrapped: plant.ErrInvalidState}
	}
	return x, nil
}

// step performs one trial Dormand-Prince step. It returns the candidate end
// state, the scaled error ratio (> 1 means the step must be rejected and
// retried) and the suggested next step size.
func (r *RK45) step(sys plant.System, x plant.State, u float64, t, dt float64) (plant.State, float64, float64, error) {
	n := len(x)

	k1, err := r.derive(sys, x, u, t)
	if err != nil {
		return nil, 0, 0, err
	}

	x2 := make(plant.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + dt*b21*k1[i]
	}
	k2, err := r.derive(sys, x2, u, t+a2*dt)
	if err != nil {
		return nil, 0, 0, err
	}

	x3 := make(plant.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3, err := r.derive(sys, x3, u, t+a3*dt)
	if err != nil {
		return nil, 0, 0, err
	}

	x4 := make(plant.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4, err := r.derive(sys, x4, u, t+a4*dt)
	if err != nil {
		return nil, 0, 0, err
	}

	x5 := make(plant.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5, err := r.derive(sys, x5, u, t+a5*dt)
	if err != nil {
		return nil, 0, 0, err
	}

	x6 := make(plant.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6, err := r.derive(sys, x6, u, t+dt)
	if err != nil {
		return nil, 0, 0, err
	}

	xNew := make(plant.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	k7, err := r.derive(sys, xNew, u, t+dt)
	if err != nil {
		return nil, 0, 0, err
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := math.Abs(x[i]) + math.Abs(dt*k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	errRatio := errMax / r.tol

	var dtNext float64
	if errRatio > 1 {
		scale := math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
		dtNext = dt * scale
	} else if errRatio > 0 {
		scale := math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
		dtNext = dt * scale
	} else {
		dtNext = dt * r.maxScale
	}

	return xNew, errRatio, dtNext, nil
}

// derive evaluates the model at a stage point, guarding the model's domain.
func (r *RK45) derive(sys plant.System, x plant.State, u, t float64) (plant.State, error) {
	if !x.IsValid() {
		return nil, plant.ErrInvalidState
	}
	if !inDomain(sys, x) {
		return nil, plant.ErrModelDomain
	}
	return sys.Derive(x, u, t), nil
}

func inDomain(sys plant.System, x plant.State) bool {
	if d, ok := sys.(plant.Domain); ok {
		return d.InDomain(x)
	}
	return true
}
