// Package noop provides a connector that echoes its parameters.
package noop

import (
	"context"
	"maps"

	"github.com/dukex/flowsmith/pkg/protocol"
)

const NodeType = "noop"

type Factory struct{}

func NewFactory() protocol.ConnectorFactory {
	return &Factory{}
}

func (f *Factory) Create(_ context.Context, _ string, config map[string]any) (protocol.Connector, error) {
	out := maps.Clone(config)
	if out == nil {
		out = map[string]any{}
	}

	return protocol.ConnectorFunc(func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return out, nil
	}), nil
}

func (f *Factory) ID() string          { return NodeType }
func (f *Factory) Name() string        { return "No-op" }
func (f *Factory) Description() string { return "Emits its resolved parameters unchanged" }

func (f *Factory) Schema() map[string]any {
	return map[string]any{"type": "object"}
}
