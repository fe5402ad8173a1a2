package log_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/flowsmith/pkg/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, log.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, log.ParseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, log.ParseLevel("unknown"))
}

func TestContextLogger(t *testing.T) {
	fallback := slog.Default()
	logger := slog.Default().With("execution_id", "exec-1")

	assert.Same(t, fallback, log.FromContext(context.Background(), fallback))
	assert.Same(t, logger, log.FromContext(log.NewContext(context.Background(), logger), fallback))
}
