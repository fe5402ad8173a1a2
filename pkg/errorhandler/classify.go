package errorhandler

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// TypeRule maps message keywords to an error type.
type TypeRule struct {
	Type     ErrorType
	Keywords []string
}

// SeverityRule maps message keywords to a severity.
type SeverityRule struct {
	Severity Severity
	Keywords []string
}

// Classifier assigns type, severity and retryability to failures using ordered
// keyword rules matched against the lower-cased error message. The first
// matching rule wins.
type Classifier struct {
	Types          []TypeRule
	Severities     []SeverityRule
	NonRetryable   []string
	Retryable      []string
	RetryableTypes []ErrorType
}

// DefaultClassifier returns the built-in keyword tables.
func DefaultClassifier() *Classifier {
	return &Classifier{
		Types: []TypeRule{
			{Type: ErrorTypeTimeout, Keywords: []string{"timeout", "timed out"}},
			{Type: ErrorTypeAuthentication, Keywords: []string{"auth", "unauthorized", "forbidden"}},
			{Type: ErrorTypeValidation, Keywords: []string{"validation", "invalid", "required"}},
			{Type: ErrorTypeConnection, Keywords: []string{"network", "connection", "fetch"}},
			{Type: ErrorTypeAPI, Keywords: []string{"api", "http", "status"}},
		},
		Severities: []SeverityRule{
			{Severity: SeverityCritical, Keywords: []string{"critical", "fatal"}},
			{Severity: SeverityHigh, Keywords: []string{"auth", "security"}},
			{Severity: SeverityMedium, Keywords: []string{"timeout", "network"}},
		},
		NonRetryable: []string{
			"authentication", "authorization", "unauthorized", "forbidden",
			"validation", "not found", "not-found", "bad request", "bad-request",
		},
		Retryable: []string{
			"network", "timeout", "timed out", "rate limit", "rate-limit",
			"too many requests", "temporary", "service unavailable", "service-unavailable",
		},
		RetryableTypes: []ErrorType{ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeAPI},
	}
}

// Type returns the error type for message.
func (c *Classifier) Type(message string) ErrorType {
	msg := strings.ToLower(message)

	for _, rule := range c.Types {
		if containsAny(msg, rule.Keywords) {
			return rule.Type
		}
	}

	return ErrorTypeUnknown
}

// Severity returns the severity for message.
func (c *Classifier) Severity(message string) Severity {
	msg := strings.ToLower(message)

	for _, rule := range c.Severities {
		if containsAny(msg, rule.Keywords) {
			return rule.Severity
		}
	}

	return SeverityLow
}

// IsRetryable applies the retry rules: a non-retryable keyword always wins,
// then a retryable keyword, then the error type.
func (c *Classifier) IsRetryable(message string, errType ErrorType) bool {
	msg := strings.ToLower(message)

	if containsAny(msg, c.NonRetryable) {
		return false
	}

	if containsAny(msg, c.Retryable) {
		return true
	}

	return slices.Contains(c.RetryableTypes, errType)
}

// Normalize converts err into a classified WorkflowError for the given context.
// An existing WorkflowError keeps its type, severity and details.
func (c *Classifier) Normalize(err error, ec ErrorContext) *WorkflowError {
	var (
		we       *WorkflowError
		existing *WorkflowError
	)

	if errors.As(err, &existing) {
		we = existing.clone()
	} else {
		we = &WorkflowError{Message: err.Error(), Err: err}
	}

	if we.Message == "" {
		we.Message = err.Error()
	}

	canceled := errors.Is(err, context.Canceled)

	if we.Type == "" {
		if errors.Is(err, context.DeadlineExceeded) {
			we.Type = ErrorTypeTimeout
		} else {
			we.Type = c.Type(we.Message)
		}
	}

	if we.Severity == "" {
		we.Severity = c.Severity(we.Message)
	}

	we.Retryable = !canceled && c.IsRetryable(we.Message, we.Type)

	if we.NodeID == "" {
		we.NodeID = ec.NodeID
	}

	if we.NodeName == "" {
		we.NodeName = ec.NodeName
	}

	if we.ExecutionID == "" {
		we.ExecutionID = ec.ExecutionID
	}

	if ec.AttemptNumber > 0 {
		we.Attempt = ec.AttemptNumber
	}

	return we
}

func containsAny(msg string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}

	return false
}
