package core

import (
	"errors"
	"fmt"
)

// NotFoundError reports a document that does not exist or is not visible to the tenant.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// ValidationError reports malformed input. Field is optional.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ConflictError reports a guard violation against the current document state.
// Retryable is set when the conflict came from a concurrent writer
// (serialization failure, stale version) and the caller may retry the whole transaction.
type ConflictError struct {
	Entity    string
	ID        any
	Message   string
	Retryable bool
}

func (e *ConflictError) Error() string {
	if e.Entity == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %v: %s", e.Entity, e.ID, e.Message)
}

// ForbiddenError reports an actor whose role does not allow the operation.
type ForbiddenError struct {
	Role   string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Action)
}

func NewNotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func NewValidation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(entity string, id any, format string, args ...any) error {
	return &ConflictError{Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// NewRetryableConflict is returned by stores when a concurrent transaction won the race.
func NewRetryableConflict(entity string, id any, format string, args ...any) error {
	return &ConflictError{Entity: entity, ID: id, Message: fmt.Sprintf(format, args...), Retryable: true}
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsForbidden(err error) bool {
	var e *ForbiddenError
	return errors.As(err, &e)
}

// IsRetryable reports whether err is a conflict caused by a concurrent writer.
func IsRetryable(err error) bool {
	var e *ConflictError
	return errors.As(err, &e) && e.Retryable
}
