// Package protocol defines the error taxonomy shared by the peripheral manager and the platform
// collaborators it depends on (timers, key-value storage, the BLE host stack).
//
// Errors are sentinel values compared with [errors.Is]. Callers that wrap them with
// fmt.Errorf("...: %w", err) keep the classification.
package protocol

import (
	"errors"
)

// Error exposes methods useful for categorizing errors.
type Error interface {
	error

	// Temporary returns true if the Error might be the result of a transient condition, such as a
	// full attribute table or no free timer slot. A caller may retry after releasing resources.
	Temporary() bool
}

var (
	// ErrOutOfResources indicates a fixed-capacity resource is exhausted (attribute table full, no
	// free timer slot) or the BLE host stack rejected an allocation.
	ErrOutOfResources = NewError("out of resources", true)
	// ErrInvalidState indicates the operation is not allowed in the current state.
	ErrInvalidState = NewError("invalid state", false)
	// ErrInvalidData indicates the supplied data is malformed.
	ErrInvalidData = NewError("invalid data", false)
	// ErrUnknown indicates an unexpected failure of the BLE host stack or the storage backend.
	ErrUnknown = NewError("unknown error", false)
)

type AccessoryError struct {
	Err               error
	PossibleTemporary bool
}

func NewError(message string, temporary bool) error {
	return &AccessoryError{Err: errors.New(message), PossibleTemporary: temporary}
}

func (e *AccessoryError) Error() string {
	return e.Err.Error()
}

func (e *AccessoryError) Unwrap() error {
	return e.Err
}

func (e *AccessoryError) Temporary() bool {
	return e.PossibleTemporary
}

// Temporary returns true if err is an Error that indicates the operation failed due to possibly
// transient conditions.
func Temporary(err error) bool {
	var e Error
	if errors.As(err, &e) && e.Temporary() {
		return true
	}
	return false
}

// ShouldRetry returns true if the caller may retry the operation that triggered err.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return Temporary(err)
}

// IsOneOf reports whether err matches any of targets.
func IsOneOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
