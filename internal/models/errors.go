package models

import "errors"

// ValidationError reports bad input to order creation, edit, or
// execution recording. It is the caller's fault and is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

var (
	// ErrNotModifiable is returned when an order can no longer be
	// edited: it left the PENDING state or already has fills.
	ErrNotModifiable = errors.New("order can no longer be modified")

	// ErrNotCancellable is returned when an order can no longer be
	// cancelled.
	ErrNotCancellable = errors.New("order can no longer be cancelled")

	// ErrNotFound is returned for unknown order or instrument ids.
	ErrNotFound = errors.New("not found")
)
