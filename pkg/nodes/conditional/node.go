package conditional

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ConditionalNode evaluates the truthiness of its resolved condition.
type ConditionalNode struct {
	id        string
	condition any
}

func NewConditionalNode(id string, config map[string]any) (*ConditionalNode, error) {
	condition, ok := config["condition"]
	if !ok {
		return nil, errors.New("missing required field 'condition'")
	}

	return &ConditionalNode{id: id, condition: condition}, nil
}

func (n *ConditionalNode) Run(_ context.Context) (any, error) {
	result := truthy(n.condition)

	branch := "false"
	if result {
		branch = "true"
	}

	return map[string]any{
		"result": result,
		"branch": branch,
	}, nil
}

func truthy(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		s := strings.TrimSpace(strings.ToLower(value))
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}

		return s != ""
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case []any:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	default:
		return true
	}
}
