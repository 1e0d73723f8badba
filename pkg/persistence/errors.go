// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types all implementations should use.
var (
	// ErrAutomationNotFound indicates no automation exists for the given id.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrExecutionNotFound indicates no execution exists for the given id.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrContactNotFound indicates no contact exists for the given id.
	ErrContactNotFound = errors.New("contact not found")

	// ErrConversationNotFound indicates no conversation exists for the given id.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrPendingWaitNotFound indicates no pending wait exists for the
	// given conversation.
	ErrPendingWaitNotFound = errors.New("pending wait not found")

	// ErrPendingConflict indicates a conversation already has an
	// outstanding pending wait; a second wait is never silently dropped.
	ErrPendingConflict = errors.New("conversation already has a pending wait")
)

// ExecutionError wraps execution-related errors with operation context.
type ExecutionError struct {
	Op          string // operation being performed (e.g. "SetStatus", "AppendLog")
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// AutomationError wraps automation-related errors with operation context.
type AutomationError struct {
	Op           string
	AutomationID string
	Err          error
}

func (e *AutomationError) Error() string {
	return fmt.Sprintf("%s operation failed for automation %s: %v", e.Op, e.AutomationID, e.Err)
}

func (e *AutomationError) Unwrap() error {
	return e.Err
}

func (e *AutomationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAutomationError creates a new automation error with context.
func NewAutomationError(op, automationID string, err error) *AutomationError {
	return &AutomationError{
		Op:           op,
		AutomationID: automationID,
		Err:          err,
	}
}

// IsAutomationNotFound checks if an error indicates a missing automation.
func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsExecutionNotFound checks if an error indicates a missing execution.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsContactNotFound checks if an error indicates a missing contact.
func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

// IsConversationNotFound checks if an error indicates a missing conversation.
func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsPendingWaitNotFound checks if an error indicates a missing pending wait.
func IsPendingWaitNotFound(err error) bool {
	return errors.Is(err, ErrPendingWaitNotFound)
}

// IsPendingConflict checks if an error indicates a duplicate pending wait.
func IsPendingConflict(err error) bool {
	return errors.Is(err, ErrPendingConflict)
}
