// Package koopman implements Extended Dynamic Mode Decomposition (EDMD):
// fitting a finite-dimensional Koopman operator K from sampled state pairs,
// rolling it forward, and bounding its prediction error.
//
// The pieces, leaves first:
//
//   - [Basis]: the observable dictionary ψ(x, u). Two dictionaries ship
//     with the package, [PendulumBasis] and [FishBasis].
//   - [Increment] and [Accumulator]: the moment matrices
//     A = Σ ψ(x⁺)ψ(x)ᵀ and G = Σ ψ(x)ψ(x)ᵀ.
//   - [Estimate]: K = A·G⁺ with an SVD pseudo-inverse, so a rank-deficient
//     dictionary yields the minimum-norm solution instead of failing.
//   - [Operator]: the immutable fitted K, with [Operator.Steps] and
//     [Operator.Propagate] for multi-step prediction.
//   - [BoundCalculator]: worst-case error envelope from the Lagrange
//     remainder, calibrated by the one-step errors from [MaxLocalErrors].
//
// # Ordering contract
//
// Every basis vector starts with the raw state and ends with the raw
// control. Propagated physical states are therefore recovered by
// truncation, see [Trajectory.State].
//
// # Example
//
//	b, _ := koopman.NewPendulumBasis(4, 9.81, 1)
//	acc := koopman.NewAccumulator(b)
//	for _, p := range pairs {
//	    if err := acc.Add(p); err != nil {
//	        return err
//	    }
//	}
//	op, err := acc.Finalize()
//	psi0, _ := b.Evaluate(x0, u0)
//	traj, _ := op.Propagate(psi0, 15)
//	x5 := traj.State(5, b.StateDim())
//
// # Thread Safety
//
// Basis values and Operators are read-only after construction and may be
// shared freely. An Accumulator must be driven by one goroutine; use
// [Accumulator.AddAll] for a parallel reduction.
package koopman
