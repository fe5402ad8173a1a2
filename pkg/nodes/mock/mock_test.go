package mock

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_WebhookPreview(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	factory := NewFactory(models.NodeTypeWebhook, func() time.Time { return now })

	assert.Equal(t, models.NodeTypeWebhook, factory.ID())
	assert.Nil(t, factory.Schema())

	connector, err := factory.Create(t.Context(), "hook", map[string]any{"path": "/orders"})
	require.NoError(t, err)

	out, err := connector.Run(t.Context())
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, "/orders", result["path"])
	assert.Equal(t, "POST", result["method"])
}

func TestFactory_CancelledContext(t *testing.T) {
	connector, err := NewFactory(models.NodeTypeSlack, nil).Create(t.Context(), "s", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = connector.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
