package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrConcurrencyConflict = stderrors.New("concurrency conflict")
	ErrUnknownEventName    = stderrors.New("unknown event name")
	ErrMissingField        = stderrors.New("missing field")
	ErrDuplicateEventName  = stderrors.New("duplicate event name")
	ErrDeliveryFailed      = stderrors.New("delivery failed")
)

// ConcurrencyConflictError is returned by Append when the stream moved past
// the version the caller loaded. Callers recover by reloading and retrying.
type ConcurrencyConflictError struct {
	AggregateID string
	Expected    int
	Actual      int
}

func NewConcurrencyConflict(aggregateID string, expected, actual int) *ConcurrencyConflictError {
	return &ConcurrencyConflictError{AggregateID: aggregateID, Expected: expected, Actual: actual}
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %s: expected version %d, actual %d",
		e.AggregateID, e.Expected, e.Actual)
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// UnknownEventNameError means a stored event name has no registered type.
type UnknownEventNameError struct {
	Name string
}

func NewUnknownEventName(name string) *UnknownEventNameError {
	return &UnknownEventNameError{Name: name}
}

func (e *UnknownEventNameError) Error() string {
	return fmt.Sprintf("unknown event name %q", e.Name)
}

func (e *UnknownEventNameError) Is(target error) bool {
	return target == ErrUnknownEventName
}

// MissingFieldError means a required payload entry was absent after upcasting.
type MissingFieldError struct {
	Field     string
	EventName string
}

func NewMissingField(field, eventName string) *MissingFieldError {
	return &MissingFieldError{Field: field, EventName: eventName}
}

func (e *MissingFieldError) Error() string {
	if e.EventName == "" {
		return fmt.Sprintf("missing field %q", e.Field)
	}
	return fmt.Sprintf("missing field %q in event %q", e.Field, e.EventName)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// DuplicateEventNameError is a startup error: a name was registered twice
// for different types.
type DuplicateEventNameError struct {
	Name string
}

func NewDuplicateEventName(name string) *DuplicateEventNameError {
	return &DuplicateEventNameError{Name: name}
}

func (e *DuplicateEventNameError) Error() string {
	return fmt.Sprintf("event name %q is already registered to a different type", e.Name)
}

func (e *DuplicateEventNameError) Is(target error) bool {
	return target == ErrDuplicateEventName
}

// DeliveryFailedError wraps a transport failure. It never aborts an outbox batch.
type DeliveryFailedError struct {
	Cause error
}

func NewDeliveryFailed(cause error) *DeliveryFailedError {
	return &DeliveryFailedError{Cause: cause}
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("delivery failed: %v", e.Cause)
}

func (e *DeliveryFailedError) Unwrap() error {
	return e.Cause
}

func (e *DeliveryFailedError) Is(target error) bool {
	return target == ErrDeliveryFailed
}
