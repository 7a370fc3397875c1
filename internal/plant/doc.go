// Package plant provides core primitives for continuous-time plant simulation.
//
// The package defines the fundamental types shared by the model, the solver
// and the simulation loop:
//
//   - [State]: vector representing the plant state
//   - [System]: interface for ODE plant models (dX/dt = f(X, u, t))
//   - [Domain]: optional interface restricting the valid state region
//   - [StepError]: integration failure with the time and state it occurred at
//
// # Example
//
//	model := reactor.New(reactor.DefaultFeed())
//	integ := solve.NewRK45()
//	x1, err := integ.Span(model, x0, 0, 0.05, 300)
//
// # Thread Safety
//
// State values are plain slices and are NOT safe for concurrent mutation.
// The simulation loop owns the evolving state exclusively.
package plant
