// Package registry maps node types to the connector factories that run them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/flowsmith/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// ErrConnectorNotFound is returned when no factory serves a node type.
var ErrConnectorNotFound = errors.New("connector not registered")

// ConfigError reports resolved parameters that do not satisfy the connector schema.
type ConfigError struct {
	NodeType string
	Details  []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %s", e.NodeType, strings.Join(e.Details, "; "))
}

type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	factories map[string]protocol.ConnectorFactory
	schemas   map[string]*gojsonschema.Schema
	fallback  func(nodeType string) protocol.ConnectorFactory
}

type Option func(*Registry)

// WithFallback serves node types without a registered factory.
func WithFallback(fallback func(nodeType string) protocol.ConnectorFactory) Option {
	return func(r *Registry) { r.fallback = fallback }
}

func NewRegistry(log *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:    log,
		factories: make(map[string]protocol.ConnectorFactory),
		schemas:   make(map[string]*gojsonschema.Schema),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RegisterConnector registers f for its node type, replacing any previous one.
// The schema is compiled up front so a broken schema fails at startup.
func (r *Registry) RegisterConnector(f protocol.ConnectorFactory) error {
	var schema *gojsonschema.Schema

	if raw := f.Schema(); len(raw) > 0 {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
		if err != nil {
			return fmt.Errorf("invalid schema for connector %s: %w", f.ID(), err)
		}

		schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[f.ID()] = f
	r.schemas[f.ID()] = schema

	r.logger.Debug("connector registered", "type", f.ID())

	return nil
}

// Has reports whether a factory is registered for nodeType.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.factories[nodeType]

	return ok
}

// Connectors returns the registered factories ordered by node type.
func (r *Registry) Connectors() []protocol.ConnectorFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.ConnectorFactory, 0, len(r.factories))
	for _, f := range r.factories {
		out = append(out, f)
	}

	slices.SortFunc(out, func(a, b protocol.ConnectorFactory) int {
		return strings.Compare(a.ID(), b.ID())
	})

	return out
}

// CreateConnector validates config against the node type's schema and creates
// a connector for the node.
func (r *Registry) CreateConnector(ctx context.Context, nodeType, id string, config map[string]any) (protocol.Connector, error) {
	r.mu.RLock()
	factory, ok := r.factories[nodeType]
	schema := r.schemas[nodeType]
	r.mu.RUnlock()

	if !ok {
		if r.fallback == nil {
			return nil, fmt.Errorf("%w: %q", ErrConnectorNotFound, nodeType)
		}

		factory = r.fallback(nodeType)
	}

	if schema != nil {
		if err := validateConfig(nodeType, schema, config); err != nil {
			return nil, err
		}
	}

	return factory.Create(ctx, id, config)
}

func validateConfig(nodeType string, schema *gojsonschema.Schema, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(config))
	if err != nil {
		return &ConfigError{NodeType: nodeType, Details: []string{err.Error()}}
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return &ConfigError{NodeType: nodeType, Details: details}
}
