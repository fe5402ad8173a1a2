// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"time"

	"github.com/dukex/flowsmith/pkg/registry"
)

// NewRegistry returns a registry with the built-in connectors. With mockUnknown
// set, node types nobody registered run as their preview mock instead of failing.
func NewRegistry(log *slog.Logger, mockUnknown bool) (*registry.Registry, error) {
	var opts []registry.Option
	if mockUnknown {
		opts = append(opts, registry.WithFallback(registry.MockFallback(time.Now)))
	}

	reg := registry.NewRegistry(log, opts...)
	if err := reg.RegisterDefaultConnectors(); err != nil {
		return nil, err
	}

	return reg, nil
}
