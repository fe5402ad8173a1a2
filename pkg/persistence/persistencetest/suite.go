// Package persistencetest holds the behaviour every persistence backend must share.
package persistencetest

import (
	"testing"
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/persistence"
	"github.com/dukex/flowsmith/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises p against the persistence.Persistence contract. newPersistence
// must return an empty store for every call.
func Run(t *testing.T, newPersistence func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("workflow round trip", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		workflow := testutil.CreateTestWorkflowWithNodes()
		workflow.CreatedAt = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		workflow.UpdatedAt = workflow.CreatedAt
		workflow.Settings = &models.WorkflowSettings{Timezone: "Europe/Berlin"}
		workflow.Settings.ApplyDefaults()
		workflow.Metadata = models.ComputeMetadata(workflow)

		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		loaded, err := p.WorkflowByID(ctx, workflow.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)

		assert.Equal(t, workflow.Name, loaded.Name)
		assert.True(t, workflow.CreatedAt.Equal(loaded.CreatedAt))
		assert.Equal(t, workflow.Tags, loaded.Tags)
		assert.Equal(t, workflow.Variables, loaded.Variables)
		assert.Equal(t, *workflow.Settings, *loaded.Settings)
		assert.Equal(t, workflow.Metadata.NodeCount, loaded.Metadata.NodeCount)
		require.Len(t, loaded.Nodes, 2)
		assert.Equal(t, workflow.Nodes[1].Parameters, loaded.Nodes[1].Parameters)
		require.Len(t, loaded.Connections, 1)
		assert.Equal(t, *workflow.Connections[0], *loaded.Connections[0])
	})

	t.Run("save overwrites", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		workflow := testutil.CreateTestWorkflow()
		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		workflow.Name = "Renamed"
		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		all, err := p.Workflows(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Renamed", all[0].Name)
	})

	t.Run("absent workflow", func(t *testing.T) {
		p := newPersistence(t)

		loaded, err := p.WorkflowByID(t.Context(), "00000000-0000-0000-0000-000000000000")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		first := testutil.CreateTestWorkflow()
		second := testutil.CreateTestWorkflow(func(w *models.Workflow) { w.Name = "Second" })

		require.NoError(t, p.SaveWorkflow(ctx, first))
		require.NoError(t, p.SaveWorkflow(ctx, second))

		require.NoError(t, p.DeleteWorkflow(ctx, first.ID))
		require.NoError(t, p.DeleteWorkflow(ctx, first.ID))

		loaded, err := p.WorkflowByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		all, err := p.Workflows(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, second.ID, all[0].ID)
	})

	t.Run("template round trip", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		template := testutil.CreateTestTemplate()
		require.NoError(t, p.SaveTemplate(ctx, template))

		loaded, err := p.TemplateByID(ctx, template.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, template.Name, loaded.Name)
		assert.Equal(t, template.Category, loaded.Category)
		require.Len(t, loaded.Workflow.Nodes, 2)

		template.UsageCount = 3
		require.NoError(t, p.SaveTemplate(ctx, template))

		all, err := p.Templates(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, 3, all[0].UsageCount)

		require.NoError(t, p.DeleteTemplate(ctx, template.ID))
		require.NoError(t, p.DeleteTemplate(ctx, template.ID))

		loaded, err = p.TemplateByID(ctx, template.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("workflows and templates are separate", func(t *testing.T) {
		p := newPersistence(t)
		ctx := t.Context()

		workflow := testutil.CreateTestWorkflow()
		require.NoError(t, p.SaveWorkflow(ctx, workflow))

		template, err := p.TemplateByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Nil(t, template)

		templates, err := p.Templates(ctx)
		require.NoError(t, err)
		assert.Empty(t, templates)
	})

	t.Run("health check", func(t *testing.T) {
		p := newPersistence(t)

		assert.NoError(t, p.HealthCheck(t.Context()))
	})
}
