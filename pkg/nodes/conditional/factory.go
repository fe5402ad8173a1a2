// Package conditional provides the condition connector.
package conditional

import (
	"context"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/protocol"
)

type ConditionalNodeFactory struct{}

func (f *ConditionalNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Connector, error) {
	return NewConditionalNode(id, config)
}

func (f *ConditionalNodeFactory) ID() string {
	return models.NodeTypeCondition
}

func (f *ConditionalNodeFactory) Name() string {
	return "Condition"
}

func (f *ConditionalNodeFactory) Description() string {
	return "Reports whether the resolved condition is truthy"
}

func (f *ConditionalNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"description": "Condition to test, usually an expression",
				"examples":    []string{`{{ $json.amount > 100 }}`},
			},
		},
		"required": []string{"condition"},
	}
}

func NewConditionalNodeFactory() protocol.ConnectorFactory {
	return &ConditionalNodeFactory{}
}
