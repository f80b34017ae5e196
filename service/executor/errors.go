package executor

import "fmt"

// StepError marks a run failure with the failing step's type id and its
// position in the step list, enough to locate the faulty definition
// without re-running with added instrumentation.
type StepError struct {
	TypeID   string
	Position int
	Err      error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %v at position %v failed: %v", e.TypeID, e.Position, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StepError) Unwrap() error {
	return e.Err
}
