package counter

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse is returned when DynamoDB answers successfully but the
	// count attribute is missing (increment) or not an integral number.
	ErrMalformedResponse = errors.New("tally: malformed response")

	// ErrValueOutOfRange is returned when the stored count no longer fits in an
	// int64. For Increment the store has already applied the update.
	ErrValueOutOfRange = fmt.Errorf("%w: value out of int64 range", ErrMalformedResponse)

	// ErrEmptyCounterID is returned when an operation is called without a counter ID.
	ErrEmptyCounterID = errors.New("tally: empty counter id")

	// ErrProtectedOverride is returned when a request override modifies a field
	// that defines the counter operation itself (key, expressions, return values).
	ErrProtectedOverride = errors.New("tally: request override changes a protected field")
)

// StoreError reports a failed DynamoDB call. Err is the SDK error, unchanged.
type StoreError struct {
	// Op is the DynamoDB operation name ("UpdateItem", "GetItem") or
	// "ResolveClient" when the client itself could not be created.
	Op string

	// CounterID is the counter the operation targeted.
	CounterID string

	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("tally: %s %q: %v", e.Op, e.CounterID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err is or wraps a *StoreError.
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
