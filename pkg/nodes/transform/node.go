package transform

import (
	"context"
	"errors"
)

// TransformNode emits its resolved value. Expression resolution already
// happened, so the node only shapes the output.
type TransformNode struct {
	id    string
	value any
}

func NewTransformNode(id string, config map[string]any) (*TransformNode, error) {
	value, ok := config["value"]
	if !ok {
		return nil, errors.New("missing required field 'value'")
	}

	return &TransformNode{id: id, value: value}, nil
}

func (n *TransformNode) Run(_ context.Context) (any, error) {
	if m, ok := n.value.(map[string]any); ok {
		return m, nil
	}

	return map[string]any{"result": n.value}, nil
}
