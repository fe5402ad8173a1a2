package persistence_test

import (
	"errors"
	"testing"

	"github.com/dukex/flowsmith/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestRecordErrors(t *testing.T) {
	t.Parallel()

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("SaveWorkflow", "workflow-123", persistence.ErrInvalidID)

		assert.Contains(t, err.Error(), "SaveWorkflow")
		assert.Contains(t, err.Error(), "workflow workflow-123")
		assert.Contains(t, err.Error(), "invalid identifier")
		assert.True(t, persistence.IsInvalidID(err))
	})

	t.Run("template error without id", func(t *testing.T) {
		cause := errors.New("disk full")
		err := persistence.NewTemplateError("Templates", "", cause)

		assert.Equal(t, "Templates operation failed for templates: disk full", err.Error())
		assert.ErrorIs(t, err, cause)
		assert.False(t, persistence.IsCorruptRecord(err))
	})

	t.Run("corrupt record unwraps", func(t *testing.T) {
		err := persistence.NewWorkflowError("WorkflowByID", "wf-1", persistence.ErrCorruptRecord)

		var recordErr *persistence.RecordError
		assert.True(t, errors.As(err, &recordErr))
		assert.Equal(t, persistence.KindWorkflow, recordErr.Kind)
		assert.True(t, persistence.IsCorruptRecord(err))
	})
}
