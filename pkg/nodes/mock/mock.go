// Package mock provides a connector that emits the preview output of a node
// type instead of calling the real service.
package mock

import (
	"context"
	"time"

	"github.com/dukex/flowsmith/pkg/expression"
	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/protocol"
)

type Factory struct {
	nodeType string
	now      func() time.Time
}

// NewFactory creates a mock factory serving nodeType. now defaults to time.Now.
func NewFactory(nodeType string, now func() time.Time) protocol.ConnectorFactory {
	if now == nil {
		now = time.Now
	}

	return &Factory{nodeType: nodeType, now: now}
}

func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Connector, error) {
	node := &models.Node{ID: id, Type: f.nodeType, Parameters: config}

	return protocol.ConnectorFunc(func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return expression.MockOutput(node, f.now()), nil
	}), nil
}

func (f *Factory) ID() string   { return f.nodeType }
func (f *Factory) Name() string { return "Mock " + f.nodeType }

func (f *Factory) Description() string {
	return "Emits the preview output of a " + f.nodeType + " node"
}

// Schema is empty: mocked nodes accept any parameters.
func (f *Factory) Schema() map[string]any {
	return nil
}
