// Package transform provides the transform connector.
package transform

import (
	"context"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/protocol"
)

type TransformNodeFactory struct{}

func (f *TransformNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Connector, error) {
	return NewTransformNode(id, config)
}

func (f *TransformNodeFactory) ID() string {
	return models.NodeTypeTransform
}

func (f *TransformNodeFactory) Name() string {
	return "Transform"
}

func (f *TransformNodeFactory) Description() string {
	return "Emits the resolved value parameter, typically an expression over upstream output"
}

func (f *TransformNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"description": "Value to emit",
				"examples": []string{
					`{{ $json.total * 2 }}`,
					`=jq($node["Fetch"].json.body, ".users[].email")`,
				},
			},
		},
		"required": []string{"value"},
	}
}

func NewTransformNodeFactory() protocol.ConnectorFactory {
	return &TransformNodeFactory{}
}
