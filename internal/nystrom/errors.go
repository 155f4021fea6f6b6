package nystrom

import "errors"

var (
	// ErrInvalidArgument is returned for empty samples, a top-q outside
	// [1, n_sample], or a kernel result of the wrong shape.
	ErrInvalidArgument = errors.New("nystrom: invalid argument")

	// ErrNumericalFailure is returned when the kernel matrix holds NaN or Inf,
	// the eigensolver does not converge, or a returned eigenpair does not verify.
	ErrNumericalFailure = errors.New("nystrom: numerical failure")
)
