package scheduling

import (
	"errors"
	"fmt"
)

// ErrDuplicateTrip is returned when a run contains the same trip id twice
var ErrDuplicateTrip = errors.New("duplicate trip id")

// ErrInvalidOptions is returned when engine options fail validation
type ErrInvalidOptions struct {
	Field  string
	Reason string
}

func (e *ErrInvalidOptions) Error() string {
	return fmt.Sprintf("invalid option %s: %s", e.Field, e.Reason)
}

// WorkerFailureError is returned when a search task fails or panics. The
// vehicle cannot be assumed infeasible, so the run stops.
type WorkerFailureError struct {
	TripID  int64
	Vehicle int
	Err     error
}

func (e *WorkerFailureError) Error() string {
	return fmt.Sprintf("search for trip %d on vehicle %d failed: %v", e.TripID, e.Vehicle, e.Err)
}

func (e *WorkerFailureError) Unwrap() error {
	return e.Err
}
