// Package protocol defines the contracts between the executor and the
// connectors that perform node work.
package protocol

import "context"

// Connector performs the work of one node attempt. Its configuration is the
// node's parameters after expression resolution.
type Connector interface {
	Run(ctx context.Context) (any, error)
}

// ConnectorFactory creates connectors and provides metadata about the node type.
type ConnectorFactory interface {
	// Create creates a connector for the node id with resolved parameters.
	Create(ctx context.Context, id string, config map[string]any) (Connector, error)

	// ID returns the node type this factory serves.
	ID() string

	Name() string

	Description() string

	// Schema returns the JSON schema the resolved parameters must satisfy.
	Schema() map[string]any
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (any, error)

func (f ConnectorFunc) Run(ctx context.Context) (any, error) {
	return f(ctx)
}
