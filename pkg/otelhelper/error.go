package otelhelper

import (
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// classified is implemented by errors that carry a type and a severity.
type classified interface {
	Classification() (errType, severity string)
}

// SetError records err on span and marks it failed. attrs are set on the span;
// classified errors also tag it with their type and severity.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	var c classified
	if errors.As(err, &c) {
		errType, severity := c.Classification()
		attrs = append(attrs,
			attribute.String(ErrorTypeKey, errType),
			attribute.String(ErrorSeverityKey, severity))
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}
