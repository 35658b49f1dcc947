package dsp

import "fmt"

// SpectralSetupError reports a transform that cannot be prepared or run for
// the requested length. It is a configuration-level failure.
type SpectralSetupError struct {
	Length int
	Reason string
}

func (e *SpectralSetupError) Error() string {
	return fmt.Sprintf("dsp: spectral setup for length %d: %s", e.Length, e.Reason)
}

// SolveFailure classifies why a least-squares system could not be solved.
type SolveFailure int

const (
	// FailureInternal covers anything the solver cannot attribute to its
	// inputs.
	FailureInternal SolveFailure = iota
	// FailureIllegalParameter means an argument had the wrong shape or
	// non-finite content. Index is the 1-based argument position.
	FailureIllegalParameter
	// FailureSingularFactor means the triangular factor has a zero (or
	// numerically zero) diagonal. Index is the 1-based diagonal position.
	FailureSingularFactor
)

func (f SolveFailure) String() string {
	switch f {
	case FailureIllegalParameter:
		return "illegal parameter"
	case FailureSingularFactor:
		return "singular factor"
	default:
		return "internal error"
	}
}

// IllFormedSystemError is returned by LinearSolver implementations.
type IllFormedSystemError struct {
	Reason SolveFailure
	Index  int
	Err    error
}

func (e *IllFormedSystemError) Error() string {
	msg := fmt.Sprintf("dsp: ill-formed system: %s at %d", e.Reason, e.Index)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IllFormedSystemError) Unwrap() error { return e.Err }
