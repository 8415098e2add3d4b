package firehose

import (
	"errors"
	"fmt"
)

// ErrInvalidDelay is returned by Start and ParseDelay for a delay that is
// not a positive whole number of milliseconds.
var ErrInvalidDelay = errors.New("invalid delay: must be a positive integer number of milliseconds")

// TickErrorCode categorizes tick failures.
type TickErrorCode string

const (
	// ErrCodePickFailed indicates no template could be selected.
	ErrCodePickFailed TickErrorCode = "PICK_FAILED"

	// ErrCodeSynthFailed indicates the template could not be synthesized.
	ErrCodeSynthFailed TickErrorCode = "SYNTH_FAILED"

	// ErrCodeDeliveryFailed indicates signing or the POST failed.
	ErrCodeDeliveryFailed TickErrorCode = "DELIVERY_FAILED"

	// ErrCodeStoreFailed indicates a store was unavailable while delivering.
	ErrCodeStoreFailed TickErrorCode = "STORE_FAILED"
)

// TickError is the failure of one tick.
type TickError struct {
	// Code identifies the failing stage.
	Code TickErrorCode

	// TickID identifies the tick in logs.
	TickID string

	// Hash is the picked template, empty when the pick failed.
	Hash string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TickError) Error() string {
	if e.Hash != "" {
		return fmt.Sprintf("%s: %v (tick=%s, template=%s)", e.Code, e.Err, e.TickID, e.Hash)
	}
	return fmt.Sprintf("%s: %v (tick=%s)", e.Code, e.Err, e.TickID)
}

// Unwrap returns the underlying error.
func (e *TickError) Unwrap() error {
	return e.Err
}

// CodeOf returns the TickErrorCode of err, or "" when err is not a
// TickError. Uses errors.As to handle wrapped errors.
func CodeOf(err error) TickErrorCode {
	var te *TickError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
