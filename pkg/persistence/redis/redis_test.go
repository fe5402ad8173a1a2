package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/dukex/flowsmith/pkg/persistence"
	"github.com/dukex/flowsmith/pkg/persistence/persistencetest"
	"github.com/dukex/flowsmith/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersistence(t *testing.T) (*Persistence, *miniredis.Miniredis) {
	t.Helper()

	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}

	t.Cleanup(srv.Close)

	p, err := NewPersistence(context.Background(), "redis://"+srv.Addr())
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(context.Background()) })

	return p, srv
}

func TestPersistenceContract(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		p, _ := newTestPersistence(t)

		return p
	})
}

func TestPersistence_IndexesBySaveTime(t *testing.T) {
	p, srv := newTestPersistence(t)
	ctx := t.Context()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	assert.True(t, srv.Exists(workflowKey(workflow.ID)))

	members, err := srv.ZMembers(workflowIndexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{workflow.ID}, members)

	require.NoError(t, p.DeleteWorkflow(ctx, workflow.ID))
	assert.False(t, srv.Exists(workflowKey(workflow.ID)))
	assert.False(t, srv.Exists(workflowIndexKey))
}

func TestPersistence_SkipsDanglingIndexEntries(t *testing.T) {
	p, srv := newTestPersistence(t)
	ctx := t.Context()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	_, err := srv.ZAdd(workflowIndexKey, 1, "ghost")
	require.NoError(t, err)

	workflows, err := p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, workflow.ID, workflows[0].ID)
}

func TestPersistence_CorruptDocument(t *testing.T) {
	p, srv := newTestPersistence(t)

	require.NoError(t, srv.Set(templateKey("broken"), "{"))

	_, err := p.TemplateByID(t.Context(), "broken")
	assert.True(t, persistence.IsCorruptRecord(err))
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	_, err := NewPersistence(context.Background(), "://nope")
	assert.Error(t, err)
}
