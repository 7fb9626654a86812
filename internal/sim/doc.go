// Package sim provides the ground-truth trajectory oracle.
//
// An [Oracle] integrates a [dynamo.System] between requested time points,
// holding the control constant over each interval (zero-order hold). It is
// used both to synthesize training pairs and to produce the reference
// trajectories the identified operator is compared against.
//
// # Thread Safety
//
// An Oracle builds a fresh integrator for every call, so one Oracle may be
// shared by goroutines as long as the underlying System is stateless.
package sim
