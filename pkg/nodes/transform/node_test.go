package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformNode_Run(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{name: "object is emitted as is", value: map[string]any{"total": 30.0}, want: map[string]any{"total": 30.0}},
		{name: "scalar is wrapped", value: 42, want: map[string]any{"result": 42}},
		{name: "list is wrapped", value: []any{"a", "b"}, want: map[string]any{"result": []any{"a", "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := NewTransformNode("t-1", map[string]any{"value": tt.value})
			require.NoError(t, err)

			out, err := node.Run(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestNewTransformNode_MissingValue(t *testing.T) {
	_, err := NewTransformNode("t-1", map[string]any{})
	assert.Error(t, err)
}
