// Package physics provides the dynamical systems used as ground truth for
// Koopman identification.
//
// Each model implements [dynamo.System]:
//
//   - [Pendulum]: torque-driven pendulum with the angle measured from the
//     upright position
//   - [Fish]: planar tail-actuated swimmer with body-frame velocities
//
// Both also implement [dynamo.Configurable] so presets and config files can
// override physical parameters by name.
package physics
