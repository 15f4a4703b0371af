package stockflow

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegration indicates the integrator failed to converge on a span.
	ErrIntegration = errors.New("stockflow: integration failed")

	// ErrDelayLookup indicates a lagged-state query beyond the solved horizon.
	ErrDelayLookup = errors.New("stockflow: delayed lookup beyond solved horizon")

	// ErrTimeReversal indicates Solve was called with a target earlier than
	// the last solved time.
	ErrTimeReversal = errors.New("stockflow: solve target precedes solved horizon")

	// ErrInvalidModel indicates a model or initial condition the solver
	// cannot run.
	ErrInvalidModel = errors.New("stockflow: invalid model")

	// Causes carried by IntegrationError.
	ErrStepTooSmall   = errors.New("adaptive step size below minimum")
	ErrSingularMatrix = errors.New("iteration matrix is singular")
	ErrNonFinite      = errors.New("non-finite state")
	ErrStepBudget     = errors.New("step budget exhausted")
)

// IntegrationError reports the sub-span that failed and where.
type IntegrationError struct {
	Start, End float64 // sub-span being integrated
	Time       float64 // time of the failing step
	Step       float64 // step size at failure
	Cause      error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%v on [%g, %g] at t=%g (h=%g): %v", ErrIntegration, e.Start, e.End, e.Time, e.Step, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *IntegrationError) Unwrap() []error {
	return []error{ErrIntegration, e.Cause}
}

// DelayLookupError reports a query past the solved horizon.
type DelayLookupError struct {
	Time   float64 // requested time
	Solved float64 // last solved time
}

func (e *DelayLookupError) Error() string {
	return fmt.Sprintf("%v: requested t=%g, solved through t=%g", ErrDelayLookup, e.Time, e.Solved)
}

func (e *DelayLookupError) Unwrap() error {
	return ErrDelayLookup
}
