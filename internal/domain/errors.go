package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a missing device, asset or price record. The API layer
// maps it to 404.
var ErrNotFound = errors.New("not found")

// ValidationError carries a human-readable reason for rejecting input.
// The API layer maps it to 400 and returns the reason verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// StoreError wraps a persistence failure. The API layer maps it to 503 and
// the scheduler treats it as retriable on the next tick.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
