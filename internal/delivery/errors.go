package delivery

import (
	"errors"
	"fmt"
)

var (
	// ErrDeliveryFailure matches every *Error.
	ErrDeliveryFailure = errors.New("delivery failed")

	// ErrNoTarget is returned when no target inbox is configured.
	ErrNoTarget = errors.New("target endpoint is not set")

	// ErrNoInbox is returned when an actor document names no inbox.
	ErrNoInbox = errors.New("no inbox in actor document")
)

// Error describes a failed POST to a target inbox: either the transport
// failed (Err set, Status 0) or the target answered outside 2xx.
type Error struct {
	Target string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver to %s: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("deliver to %s: status %d: %s", e.Target, e.Status, e.Body)
}

// Unwrap returns the transport error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrDeliveryFailure.
func (e *Error) Is(target error) bool {
	return target == ErrDeliveryFailure
}
