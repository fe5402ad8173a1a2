package models_test

import (
	"errors"
	"testing"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Workflow)
		reason models.ValidationReason
		field  string
	}{
		{
			name:   "missing name",
			mutate: func(w *models.Workflow) { w.Name = "" },
			reason: models.ReasonMissingField,
			field:  "name",
		},
		{
			name:   "missing node name",
			mutate: func(w *models.Workflow) { w.Nodes[1].Name = "" },
			reason: models.ReasonMissingField,
			field:  "nodes[1].name",
		},
		{
			name:   "nil node",
			mutate: func(w *models.Workflow) { w.Nodes = append(w.Nodes, nil) },
			reason: models.ReasonMissingField,
			field:  "nodes[2]",
		},
		{
			name: "invalid error handling",
			mutate: func(w *models.Workflow) {
				w.Settings = &models.WorkflowSettings{ErrorHandling: "explode"}
			},
			reason: models.ReasonInvalidField,
			field:  "settings.errorHandling",
		},
		{
			name:   "duplicate node id",
			mutate: func(w *models.Workflow) { w.Nodes[1].ID = w.Nodes[0].ID },
			reason: models.ReasonDuplicateNodeID,
		},
		{
			name:   "duplicate node name",
			mutate: func(w *models.Workflow) { w.Nodes[1].Name = w.Nodes[0].Name },
			reason: models.ReasonDuplicateNodeName,
			field:  "nodes[1].name",
		},
		{
			name:   "dangling connection",
			mutate: func(w *models.Workflow) { w.Connections[0].TargetNodeID = "ghost" },
			reason: models.ReasonDanglingConnection,
			field:  "connections[0].targetNodeId",
		},
		{
			name: "self loop",
			mutate: func(w *models.Workflow) {
				w.Connections[0].TargetNodeID = w.Connections[0].SourceNodeID
			},
			reason: models.ReasonSelfLoop,
		},
		{
			name: "duplicate connection id",
			mutate: func(w *models.Workflow) {
				dup := *w.Connections[0]
				w.Connections = append(w.Connections, &dup)
			},
			reason: models.ReasonDuplicateConnectionID,
		},
		{
			name: "cycle",
			mutate: func(w *models.Workflow) {
				w.Connections = append(w.Connections, testutil.CreateTestConnection(w.Nodes[1], w.Nodes[0]))
			},
			reason: models.ReasonCycleDetected,
		},
		{
			name: "invalid cron",
			mutate: func(w *models.Workflow) {
				w.Nodes[0].Type = models.NodeTypeCron
				w.Nodes[0].Parameters = map[string]any{"cron": "every day"}
			},
			reason: models.ReasonInvalidField,
			field:  "nodes[0].parameters.cron",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflow := testutil.CreateTestWorkflowWithNodes()
			tt.mutate(workflow)

			err := models.Validate(workflow)
			require.Error(t, err)
			assert.True(t, models.IsValidationError(err))

			var validationErr *models.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.reason, validationErr.Reason)

			if tt.field != "" {
				assert.Equal(t, tt.field, validationErr.Field)
			}
		})
	}
}

func TestValidate_ValidWorkflow(t *testing.T) {
	workflow := testutil.CreateTestWorkflowWithNodes()
	workflow.Nodes = append(workflow.Nodes, testutil.CreateTestNode(
		testutil.WithName("Every Morning"),
		testutil.WithType(models.NodeTypeSchedule),
		testutil.WithParameters(map[string]any{"cron": "0 9 * * *"}),
	))

	assert.NoError(t, models.Validate(workflow))
}
