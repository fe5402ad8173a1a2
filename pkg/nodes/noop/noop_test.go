package noop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_EchoesParameters(t *testing.T) {
	config := map[string]any{"message": "hi"}

	connector, err := NewFactory().Create(t.Context(), "n", config)
	require.NoError(t, err)

	config["message"] = "changed"

	out, err := connector.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message": "hi"}, out)
}

func TestFactory_NilParameters(t *testing.T) {
	connector, err := NewFactory().Create(t.Context(), "n", nil)
	require.NoError(t, err)

	out, err := connector.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out)
}
