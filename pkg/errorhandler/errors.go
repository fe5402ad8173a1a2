package errorhandler

import (
	"fmt"
	"maps"
	"time"
)

// ErrorType is the coarse category of a node failure.
type ErrorType string

const (
	ErrorTypeConnection     ErrorType = "connection"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeAPI            ErrorType = "api"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Severity ranks how serious a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// WorkflowError is a classified runtime failure of a node attempt.
type WorkflowError struct {
	ID          string         `json:"id"`
	Type        ErrorType      `json:"type"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
	NodeID      string         `json:"nodeId,omitempty"`
	NodeName    string         `json:"nodeName,omitempty"`
	ExecutionID string         `json:"executionId,omitempty"`
	Attempt     int            `json:"attempt"`
	Retryable   bool           `json:"retryable"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
	Err         error          `json:"-"`
}

// NewWorkflowError builds an unclassified error of the given type. Severity and
// retryability are filled in when the error goes through a Handler.
func NewWorkflowError(errType ErrorType, message string, cause error) *WorkflowError {
	return &WorkflowError{
		Type:    errType,
		Message: message,
		Err:     cause,
	}
}

func (e *WorkflowError) Error() string {
	if e.NodeName != "" {
		return fmt.Sprintf("%s error in node %q (%s): %s", e.Type, e.NodeName, e.Severity, e.Message)
	}

	return fmt.Sprintf("%s error (%s): %s", e.Type, e.Severity, e.Message)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Classification returns the type and severity as plain strings for tracing.
func (e *WorkflowError) Classification() (errType, severity string) {
	return string(e.Type), string(e.Severity)
}

func (e *WorkflowError) clone() *WorkflowError {
	c := *e
	c.Details = maps.Clone(e.Details)

	return &c
}

// ErrorContext locates a failure within a run.
type ErrorContext struct {
	NodeID        string
	NodeName      string
	ExecutionID   string
	AttemptNumber int
}
