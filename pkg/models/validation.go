package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ValidationReason names the invariant a workflow violates.
type ValidationReason string

const (
	ReasonMissingField          ValidationReason = "missing_field"
	ReasonInvalidField          ValidationReason = "invalid_field"
	ReasonDuplicateNodeID       ValidationReason = "duplicate_node_id"
	ReasonDuplicateNodeName     ValidationReason = "duplicate_node_name"
	ReasonDuplicateConnectionID ValidationReason = "duplicate_connection_id"
	ReasonDanglingConnection    ValidationReason = "dangling_connection"
	ReasonSelfLoop              ValidationReason = "self_loop"
	ReasonCycleDetected         ValidationReason = "cycle_detected"
)

// ValidationError reports the first invariant a workflow definition violates.
type ValidationError struct {
	Reason  ValidationReason
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid workflow (%s): %s", e.Reason, e.Message)
	}

	return fmt.Sprintf("invalid workflow (%s) at %s: %s", e.Reason, e.Field, e.Message)
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError

	return errors.As(err, &target)
}

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}

			return name
		})

		structValidator = v
	})

	return structValidator
}

// Validate checks the structural invariants of a workflow definition and
// returns the first violation found, or nil.
func Validate(w *Workflow) error {
	if w == nil {
		return &ValidationError{Reason: ReasonMissingField, Message: "workflow is nil"}
	}

	for i, node := range w.Nodes {
		if node == nil {
			return &ValidationError{
				Reason:  ReasonMissingField,
				Field:   fmt.Sprintf("nodes[%d]", i),
				Message: "node is nil",
			}
		}
	}

	for i, conn := range w.Connections {
		if conn == nil {
			return &ValidationError{
				Reason:  ReasonMissingField,
				Field:   fmt.Sprintf("connections[%d]", i),
				Message: "connection is nil",
			}
		}
	}

	if err := validateStruct(w); err != nil {
		return err
	}

	if err := validateNodes(w.Nodes); err != nil {
		return err
	}

	if err := validateConnections(w); err != nil {
		return err
	}

	if _, err := w.TopologicalOrder(); err != nil {
		return &ValidationError{
			Reason:  ReasonCycleDetected,
			Field:   "connections",
			Message: err.Error(),
		}
	}

	return nil
}

func validateStruct(w *Workflow) error {
	err := getValidator().Struct(w)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return &ValidationError{Reason: ReasonInvalidField, Message: err.Error()}
	}

	first := fieldErrors[0]
	field := first.Namespace()

	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	if first.Tag() == "required" {
		return &ValidationError{
			Reason:  ReasonMissingField,
			Field:   field,
			Message: field + " is required",
		}
	}

	return &ValidationError{
		Reason:  ReasonInvalidField,
		Field:   field,
		Message: fmt.Sprintf("%s failed %q validation", field, first.Tag()),
	}
}

func validateNodes(nodes []*Node) error {
	ids := make(map[string]struct{}, len(nodes))
	names := make(map[string]struct{}, len(nodes))

	for i, node := range nodes {
		if _, ok := ids[node.ID]; ok {
			return &ValidationError{
				Reason:  ReasonDuplicateNodeID,
				Field:   fmt.Sprintf("nodes[%d].id", i),
				Message: fmt.Sprintf("node id %q is used more than once", node.ID),
			}
		}

		ids[node.ID] = struct{}{}

		if _, ok := names[node.Name]; ok {
			return &ValidationError{
				Reason:  ReasonDuplicateNodeName,
				Field:   fmt.Sprintf("nodes[%d].name", i),
				Message: fmt.Sprintf("node name %q is used more than once", node.Name),
			}
		}

		names[node.Name] = struct{}{}

		if err := validateSchedule(i, node); err != nil {
			return err
		}
	}

	return nil
}

// validateSchedule rejects schedule and cron nodes whose literal cron parameter does not parse.
func validateSchedule(i int, node *Node) error {
	if node.Type != NodeTypeSchedule && node.Type != NodeTypeCron {
		return nil
	}

	spec, ok := node.Parameters["cron"].(string)
	if !ok || spec == "" || strings.Contains(spec, "{{") || strings.HasPrefix(spec, "=") {
		return nil
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return &ValidationError{
			Reason:  ReasonInvalidField,
			Field:   fmt.Sprintf("nodes[%d].parameters.cron", i),
			Message: fmt.Sprintf("invalid cron expression %q: %v", spec, err),
		}
	}

	return nil
}

func validateConnections(w *Workflow) error {
	ids := make(map[string]struct{}, len(w.Connections))

	for i, conn := range w.Connections {
		if _, ok := ids[conn.ID]; ok {
			return &ValidationError{
				Reason:  ReasonDuplicateConnectionID,
				Field:   fmt.Sprintf("connections[%d].id", i),
				Message: fmt.Sprintf("connection id %q is used more than once", conn.ID),
			}
		}

		ids[conn.ID] = struct{}{}

		if w.NodeByID(conn.SourceNodeID) == nil {
			return &ValidationError{
				Reason:  ReasonDanglingConnection,
				Field:   fmt.Sprintf("connections[%d].sourceNodeId", i),
				Message: fmt.Sprintf("source node %q does not exist", conn.SourceNodeID),
			}
		}

		if w.NodeByID(conn.TargetNodeID) == nil {
			return &ValidationError{
				Reason:  ReasonDanglingConnection,
				Field:   fmt.Sprintf("connections[%d].targetNodeId", i),
				Message: fmt.Sprintf("target node %q does not exist", conn.TargetNodeID),
			}
		}

		if conn.SourceNodeID == conn.TargetNodeID {
			return &ValidationError{
				Reason:  ReasonSelfLoop,
				Field:   fmt.Sprintf("connections[%d]", i),
				Message: fmt.Sprintf("node %q is connected to itself", conn.SourceNodeID),
			}
		}
	}

	return nil
}
