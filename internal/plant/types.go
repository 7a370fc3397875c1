package plant

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// System is an ODE plant model driven by a scalar control input u.
type System interface {
	Derive(x State, u float64, t float64) State
	Dim() int
}

// Domain restricts the region of state space where a System is defined.
// Solvers must not evaluate Derive outside it.
type Domain interface {
	InDomain(x State) bool
}
