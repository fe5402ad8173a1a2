package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flowsmith/pkg/persistence"
	"github.com/dukex/flowsmith/pkg/persistence/persistencetest"
	"github.com/dukex/flowsmith/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistenceContract(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		return NewPersistence(t.TempDir())
	})
}

func TestNewPersistence(t *testing.T) {
	assert.Equal(t, "/tmp/test", NewPersistence("/tmp/test").root)
	assert.Equal(t, "/tmp/test", NewPersistence("file:///tmp/test").root)
}

func TestPersistence_SaveWorkflowWritesDocument(t *testing.T) {
	testDir := t.TempDir()
	p := NewPersistence(testDir)

	workflow := testutil.CreateTestWorkflowWithNodes()
	require.NoError(t, p.SaveWorkflow(t.Context(), workflow))

	filePath := filepath.Join(testDir, "workflows", workflow.ID+".json")
	data, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sourceNodeId": "trigger-1"`)

	entries, err := os.ReadDir(filepath.Join(testDir, "workflows"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestPersistence_RejectsPathTraversal(t *testing.T) {
	p := NewPersistence(t.TempDir())

	tests := []string{"", "..", "../etc/passwd", "a/b", `a\b`, "x..y"}

	for _, id := range tests {
		t.Run(id, func(t *testing.T) {
			_, err := p.WorkflowByID(t.Context(), id)
			assert.True(t, persistence.IsInvalidID(err))

			err = p.DeleteTemplate(t.Context(), id)
			assert.True(t, persistence.IsInvalidID(err))
		})
	}
}

func TestPersistence_CorruptDocument(t *testing.T) {
	testDir := t.TempDir()
	p := NewPersistence(testDir)

	require.NoError(t, os.MkdirAll(filepath.Join(testDir, "workflows"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(testDir, "workflows", "broken.json"), []byte("{not json"), 0o600))

	_, err := p.WorkflowByID(t.Context(), "broken")
	require.Error(t, err)
	assert.True(t, persistence.IsCorruptRecord(err))

	_, err = p.Workflows(t.Context())
	assert.True(t, persistence.IsCorruptRecord(err))
}

func TestPersistence_EmptyRoot(t *testing.T) {
	p := NewPersistence(t.TempDir())

	workflows, err := p.Workflows(t.Context())
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestPersistence_HealthCheck(t *testing.T) {
	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(t.Context()))
	assert.Error(t, NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(t.Context()))
}

func TestPersistence_Close(t *testing.T) {
	assert.NoError(t, NewPersistence(t.TempDir()).Close(t.Context()))
}
