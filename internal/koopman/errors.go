package koopman

import (
	"errors"

	"github.com/san-kum/koopsim/internal/dynamo"
)

var (
	// ErrDimensionMismatch is shared with dynamo so callers can match size
	// errors from any layer with one errors.Is check.
	ErrDimensionMismatch = dynamo.ErrDimensionMismatch

	ErrEmpty         = errors.New("koopman: no samples accumulated")
	ErrFinalized     = errors.New("koopman: accumulator already finalized")
	ErrFactorization = errors.New("koopman: singular value decomposition did not converge")
)
