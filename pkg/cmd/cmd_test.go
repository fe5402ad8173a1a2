package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dukex/flowsmith/pkg/channels/kafka"
	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/persistence/bolt"
	"github.com/dukex/flowsmith/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.DiscardHandler)

func TestParsePersistenceProvider(t *testing.T) {
	tests := []struct {
		url      string
		provider string
		location string
	}{
		{url: "./data", provider: "file", location: "./data"},
		{url: "file:///var/lib/flowsmith", provider: "file", location: "/var/lib/flowsmith"},
		{url: "bolt://flows.db", provider: "bolt", location: "flows.db"},
		{url: "postgres://user@localhost/db", provider: "postgres", location: "user@localhost/db"},
		{url: "PostgreSQL://localhost/db", provider: "postgresql", location: "localhost/db"},
		{url: "redis://localhost:6379/0", provider: "redis", location: "localhost:6379/0"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			provider, location := parsePersistenceProvider(tt.url)

			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.location, location)
		})
	}
}

func TestNewPersistence(t *testing.T) {
	dir := t.TempDir()

	p, err := NewPersistence(t.Context(), discard, dir)
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)

	p, err = NewPersistence(t.Context(), discard, "bolt://"+filepath.Join(dir, "flows.db"))
	require.NoError(t, err)
	assert.IsType(t, &bolt.Persistence{}, p)
	require.NoError(t, p.Close(t.Context()))

	p, err = NewPersistence(t.Context(), discard, "mongodb://localhost")
	require.ErrorIs(t, err, ErrUnsupportedPersistence)
	assert.Nil(t, p)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("none", nil, discard)
	require.NoError(t, err)
	assert.Nil(t, bus)

	bus, err = NewEventBus("gochannel", nil, discard)
	require.NoError(t, err)
	require.NotNil(t, bus)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", nil, discard)
	require.ErrorIs(t, err, kafka.ErrNoBrokers)

	_, err = NewEventBus("rabbitmq", nil, discard)
	require.ErrorIs(t, err, ErrUnsupportedEventBus)
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(discard, false)
	require.NoError(t, err)
	assert.True(t, reg.Has("noop"))
	assert.False(t, reg.Has(models.NodeTypeSlack))

	_, err = reg.CreateConnector(t.Context(), models.NodeTypeSlack, "n1", map[string]any{})
	require.Error(t, err)

	reg, err = NewRegistry(discard, true)
	require.NoError(t, err)

	connector, err := reg.CreateConnector(t.Context(), models.NodeTypeSlack, "n1", map[string]any{})
	require.NoError(t, err)

	out, err := connector.Run(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, out)
}
