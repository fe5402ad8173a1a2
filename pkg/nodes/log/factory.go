// Package log provides the log connector.
package log

import (
	"context"
	"log/slog"

	"github.com/dukex/flowsmith/pkg/protocol"
)

// LogNodeFactory creates LogNode connectors.
type LogNodeFactory struct {
	logger *slog.Logger
}

func (f *LogNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Connector, error) {
	return NewLogNode(id, config, f.logger)
}

func (f *LogNodeFactory) ID() string {
	return "log"
}

func (f *LogNodeFactory) Name() string {
	return "Log"
}

func (f *LogNodeFactory) Description() string {
	return "Logs a message at the given level (debug, info, warn, error)"
}

func (f *LogNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log. Expressions are resolved before the node runs.",
			},
			"level": map[string]any{
				"type":    "string",
				"enum":    []string{"debug", "info", "warn", "error"},
				"default": "info",
			},
		},
		"required": []string{"message"},
	}
}

// NewLogNodeFactory creates a factory logging through logger.
func NewLogNodeFactory(logger *slog.Logger) protocol.ConnectorFactory {
	return &LogNodeFactory{logger: logger}
}
