// Package control provides feedback controllers for dynamical systems.
//
// Controllers implement the [dynamo.Controller] interface to compute
// control inputs based on system state:
//
//   - [LQR]: full-state feedback u = −K(x − target)
//   - [Lifted]: LQR feedback on the leading entries of a Koopman basis
//     vector, designed on the identified linear model
//   - [Hold]: a constant control vector
//   - [None]: zero control
//
// [DLQR] solves the discrete-time Riccati equation for the LQR gain.
//
// # Usage
//
//	// ψ⁺[0:3] ≈ A·ψ[0:3] + B·u
//	gain, _, err := control.DLQR(a, b, q, r, 0)
//	ctrl, err := control.NewLifted(basis, gain, 3)
//	res, err := oracle.Closed(ctx, x0, ctrl, dt, 10)
package control
