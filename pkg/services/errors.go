// Package services holds the workflow manager: the only component with
// persistence side effects.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flowsmith/pkg/models"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTemplateNotFound is returned when a template is not found.
	ErrTemplateNotFound = errors.New("template not found")

	ErrWorkflowNil        = errors.New("workflow cannot be nil")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrManagerUnavailable = errors.New("persistence layer not initialized")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// FormatError reports an import payload that could not be parsed or has the
// wrong shape. It is raised before anything is saved.
type FormatError struct {
	Format string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s import: %s: %v", e.Format, e.Reason, e.Err)
	}

	return fmt.Sprintf("invalid %s import: %s", e.Format, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsFormatError reports whether err wraps a *FormatError.
func IsFormatError(err error) bool {
	var target *FormatError

	return errors.As(err, &target)
}

// IsValidationError checks if an error is a caller error that must not be retried.
func IsValidationError(err error) bool {
	var serviceErr *ServiceError

	return models.IsValidationError(err) ||
		errors.As(err, &serviceErr) ||
		IsFormatError(err) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrUnsupportedFormat)
}

// IsNotFound reports whether err means the requested workflow or template does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) || errors.Is(err, ErrTemplateNotFound)
}
