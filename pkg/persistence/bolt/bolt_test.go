package bolt

import (
	"path/filepath"
	"testing"

	"github.com/dukex/flowsmith/pkg/persistence"
	"github.com/dukex/flowsmith/pkg/persistence/persistencetest"
	"github.com/dukex/flowsmith/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	p, err := NewPersistence("bolt://" + filepath.Join(t.TempDir(), "flowsmith.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close(t.Context()) })

	return p
}

func TestPersistenceContract(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		return newTestPersistence(t)
	})
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "flowsmith.db")

	p, err := NewPersistence(filename)
	require.NoError(t, err)

	workflow := testutil.CreateTestWorkflowWithNodes()
	require.NoError(t, p.SaveWorkflow(t.Context(), workflow))
	require.NoError(t, p.Close(t.Context()))

	reopened, err := NewPersistence(filename)
	require.NoError(t, err)

	defer func() { _ = reopened.Close(t.Context()) }()

	loaded, err := reopened.WorkflowByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Nodes, 2)
}

func TestPersistence_CorruptValue(t *testing.T) {
	p := newTestPersistence(t)

	require.NoError(t, p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(workflowsBucket).Put([]byte("broken"), []byte("{"))
	}))

	_, err := p.WorkflowByID(t.Context(), "broken")
	assert.True(t, persistence.IsCorruptRecord(err))

	_, err = p.Workflows(t.Context())
	assert.True(t, persistence.IsCorruptRecord(err))
}

func TestPersistence_EmptyID(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.WorkflowByID(t.Context(), "")
	assert.True(t, persistence.IsInvalidID(err))
}
