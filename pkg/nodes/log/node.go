package log

import (
	"context"
	"errors"
	"log/slog"

	flowlog "github.com/dukex/flowsmith/pkg/log"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// LogNode writes its message to the structured log.
type LogNode struct {
	id      string
	message string
	level   string
	logger  *slog.Logger
}

func NewLogNode(id string, config map[string]any, logger *slog.Logger) (*LogNode, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level := "info"
	if lvl, ok := config["level"].(string); ok && lvl != "" {
		level = lvl
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &LogNode{
		id:      id,
		message: message,
		level:   level,
		logger:  logger,
	}, nil
}

func (n *LogNode) Run(ctx context.Context) (any, error) {
	level, ok := levels[n.level]
	if !ok {
		level = slog.LevelInfo
	}

	// Prefer the run-scoped logger so the line carries the execution id.
	flowlog.FromContext(ctx, n.logger).Log(ctx, level, n.message, "node_id", n.id, "node_type", "log")

	return map[string]any{
		"message": n.message,
		"level":   n.level,
		"logged":  true,
	}, nil
}
