// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrVersionNotFound indicates no published version exists for the given pair.
	ErrVersionNotFound = errors.New("workflow version not found")

	// ErrVersionAlreadyExists indicates an attempt to overwrite an immutable version.
	ErrVersionAlreadyExists = errors.New("workflow version already exists")

	// ErrLookupTableNotFound indicates a lookup table was not found by the given identifier.
	ErrLookupTableNotFound = errors.New("lookup table not found")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string // Workflow ID if applicable
	Version    int    // Version number for version operations, 0 otherwise
	Err        error  // Underlying error
}

func (e *WorkflowError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s operation failed for workflow %s version %d: %v", e.Op, e.WorkflowID, e.Version, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// NewVersionError creates a new workflow error for version operations.
func NewVersionError(op, workflowID string, version int, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Version:    version,
		Err:        err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsVersionNotFound checks if an error indicates a published version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsVersionAlreadyExists checks if an error indicates an immutable version collision.
func IsVersionAlreadyExists(err error) bool {
	return errors.Is(err, ErrVersionAlreadyExists)
}

// IsLookupTableNotFound checks if an error indicates a lookup table was not found.
func IsLookupTableNotFound(err error) bool {
	return errors.Is(err, ErrLookupTableNotFound)
}
