package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrInvalidID indicates an identifier that cannot be used as a storage key.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrCorruptRecord indicates a stored record could not be decoded.
	ErrCorruptRecord = errors.New("corrupt record")
)

// Record kinds used in RecordError.
const (
	KindWorkflow = "workflow"
	KindTemplate = "template"
)

// RecordError wraps a backend failure with the operation and record it concerns.
type RecordError struct {
	Op   string // Operation being performed (e.g. "WorkflowByID", "SaveTemplate")
	Kind string // KindWorkflow or KindTemplate
	ID   string
	Err  error
}

func (e *RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s operation failed for %ss: %v", e.Op, e.Kind, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *RecordError {
	return &RecordError{Op: op, Kind: KindWorkflow, ID: workflowID, Err: err}
}

// NewTemplateError creates a new template error with context.
func NewTemplateError(op, templateID string, err error) *RecordError {
	return &RecordError{Op: op, Kind: KindTemplate, ID: templateID, Err: err}
}

// IsInvalidID checks if an error indicates an unusable identifier.
func IsInvalidID(err error) bool {
	return errors.Is(err, ErrInvalidID)
}

// IsCorruptRecord checks if an error indicates an undecodable record.
func IsCorruptRecord(err error) bool {
	return errors.Is(err, ErrCorruptRecord)
}
