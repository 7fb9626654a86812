// Package dynamo provides the shared primitives for simulating and sampling
// controlled dynamical systems.
//
// The package defines the vocabulary the rest of koopsim is written in:
//
//   - [State]: vector representing the physical system's configuration
//   - [Control]: vector of actuation inputs held over a sample interval
//   - [System]: interface for controlled ODEs (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [Controller]: feedback law used by closed-loop runs
//   - [Metric]: scalar observed over a closed-loop run
//
// # Example
//
//	dyn := physics.NewPendulum()
//	integ := integrators.NewRK4()
//	x1 := integ.Step(dyn, dynamo.State{0.1, 0}, dynamo.Control{0}, 0, 0.02)
//
// # Parallel work
//
// [Partition] and [ParallelFor] split an index range into contiguous spans
// processed by separate goroutines. Span order is stable, so callers that
// reduce per-span partial results in span order get the same answer for the
// same worker count.
package dynamo
