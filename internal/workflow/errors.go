package workflow

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the addressed entity does not exist.
var ErrNotFound = errors.New("not found")

// InvalidTransitionError is returned when the target is not reachable from
// the current status.
type InvalidTransitionError struct {
	Entity EntityType
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}

// ForbiddenError is returned when the actor's role lacks the capability.
type ForbiddenError struct {
	Role   Role
	Action Action
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("role %s may not perform %s", e.Role, e.Action)
}

// InsufficientBudgetError is returned when an allocation would push a
// project's used hours over its total.
type InsufficientBudgetError struct {
	Available float64
	Requested float64
}

func (e *InsufficientBudgetError) Error() string {
	return fmt.Sprintf("insufficient project budget: %.2fh available, %.2fh requested", e.Available, e.Requested)
}

// ReasonRequiredError is returned when a flagged transition has no reason.
type ReasonRequiredError struct {
	Target ProjectStatus
}

func (e *ReasonRequiredError) Error() string {
	return fmt.Sprintf("a reason is required to move a project to %s", e.Target)
}

// ConflictError is returned when the entity changed since the caller read it.
type ConflictError struct {
	Entity   EntityType
	ID       string
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified: expected version %d, found %d", e.Entity, e.ID, e.Expected, e.Actual)
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a ValidationError from a message.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Err: fmt.Errorf(format, args...)}
}
