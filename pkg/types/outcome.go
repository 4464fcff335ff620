package types

import "time"

// Outcome is the structured result of a retried execution. Exactly one of
// Value and Err is meaningful; Success says which.
type Outcome[T any] struct {
	// Success indicates the operation eventually succeeded
	Success bool

	// Value is the operation result, meaningful only on success
	Value T

	// Err is the final classified error, nil on success
	Err *OperationError

	// Attempts is the number of attempts made, at least 1
	Attempts int

	// Elapsed is the total wall time spent, including backoff waits
	Elapsed time.Duration
}

// Result unwraps the outcome into the conventional value/error pair
func (o Outcome[T]) Result() (T, error) {
	if o.Err != nil {
		return o.Value, o.Err
	}
	return o.Value, nil
}
