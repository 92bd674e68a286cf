package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel errors. Every typed error below matches exactly one of these via
// errors.Is, except InactiveTaskError which also matches ErrInvalidTransition.
var (
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInactiveTask      = errors.New("inactive task")
	ErrNotFound          = errors.New("not found")
)

// ValidationError reports malformed input. Nothing is mutated when it is
// returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransitionError reports an action the task's current status does not allow.
type TransitionError struct {
	TaskID int64
	From   Status
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %d: cannot %s from status %q", e.TaskID, e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// InactiveTaskError reports an operation on a soft-deleted task.
type InactiveTaskError struct {
	TaskID int64
}

func (e *InactiveTaskError) Error() string {
	return fmt.Sprintf("task %d is inactive", e.TaskID)
}

func (e *InactiveTaskError) Is(target error) bool {
	return target == ErrInactiveTask || target == ErrInvalidTransition
}

// NotFoundError reports a missing user, task or category.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFoundID builds a NotFoundError for a numeric identifier.
func NotFoundID(kind string, id int64) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: strconv.FormatInt(id, 10)}
}

func quote(s string) string { return strconv.Quote(s) }
