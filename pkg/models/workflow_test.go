package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowSettings_UnmarshalJSON_DefaultsOmittedFields(t *testing.T) {
	var settings models.WorkflowSettings

	err := json.Unmarshal([]byte(`{"errorHandling":"retry","saveDataOnSuccess":true}`), &settings)
	require.NoError(t, err)

	assert.Equal(t, models.ErrorHandlingRetry, settings.ErrorHandling)
	assert.True(t, settings.SaveDataOnSuccess)
	assert.Equal(t, "UTC", settings.Timezone)
	assert.Equal(t, 3, settings.RetryAttempts)
	assert.Equal(t, 1000, settings.RetryDelay)
	assert.Equal(t, 300000, settings.Timeout)
	assert.True(t, settings.SaveExecutionProgress)
	assert.True(t, settings.SaveDataOnError)
	assert.True(t, settings.SaveManualExecutions)
}

func TestWorkflow_EffectiveSettings(t *testing.T) {
	workflow := testutil.CreateTestWorkflow()
	assert.Equal(t, models.DefaultSettings(), workflow.EffectiveSettings())

	workflow.Settings = &models.WorkflowSettings{RetryAttempts: 5}
	effective := workflow.EffectiveSettings()

	assert.Equal(t, 5, effective.RetryAttempts)
	assert.Equal(t, models.ErrorHandlingStop, effective.ErrorHandling)
	assert.Equal(t, models.DefaultTimezone, effective.Timezone)
	assert.Equal(t, 0, effective.RetryDelay)
	assert.Empty(t, workflow.Settings.Timezone, "stored settings must not be mutated")
}

func TestWorkflowSettings_KeepsExplicitZero(t *testing.T) {
	var settings models.WorkflowSettings
	require.NoError(t, json.Unmarshal([]byte(`{"retryAttempts":0,"retryDelay":0,"timeout":0,"errorHandling":"retry"}`), &settings))

	settings.ApplyDefaults()

	assert.Equal(t, 0, settings.RetryAttempts)
	assert.Equal(t, 0, settings.RetryDelay)
	assert.Equal(t, 0, settings.Timeout)
	assert.Equal(t, models.ErrorHandlingRetry, settings.ErrorHandling)
	assert.Equal(t, models.DefaultTimezone, settings.Timezone)
}

func TestComputeMetadata(t *testing.T) {
	tests := []struct {
		name       string
		nodes      int
		difficulty models.Difficulty
	}{
		{name: "empty", nodes: 0, difficulty: models.DifficultyBeginner},
		{name: "five nodes", nodes: 5, difficulty: models.DifficultyBeginner},
		{name: "six nodes", nodes: 6, difficulty: models.DifficultyIntermediate},
		{name: "ten nodes", nodes: 10, difficulty: models.DifficultyIntermediate},
		{name: "eleven nodes", nodes: 11, difficulty: models.DifficultyAdvanced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workflow := testutil.CreateTestWorkflow()
			for range tt.nodes {
				workflow.Nodes = append(workflow.Nodes, testutil.CreateTestNode())
			}

			meta := models.ComputeMetadata(workflow)

			assert.Equal(t, tt.nodes, meta.NodeCount)
			assert.Equal(t, tt.difficulty, meta.Difficulty)
			assert.Equal(t, 2000*tt.nodes, meta.EstimatedRunTime)
			assert.Equal(t, "test", meta.Category)
		})
	}
}

func TestWorkflowMetadata_RecordExecution(t *testing.T) {
	var meta models.WorkflowMetadata

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	meta.RecordExecution(true, at)
	meta.RecordExecution(false, at.Add(time.Minute))

	assert.Equal(t, 2, meta.ExecutionCount)
	assert.InDelta(t, 0.5, meta.SuccessRate, 0.0001)
	require.NotNil(t, meta.LastExecuted)
	assert.Equal(t, at.Add(time.Minute), *meta.LastExecuted)
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"email", "crm"}, models.NormalizeTags([]string{" email", "crm", "", "email "}))
	assert.Empty(t, models.NormalizeTags(nil))
}

func TestWorkflow_TopologicalOrder_IgnoresArrayOrder(t *testing.T) {
	workflow := testutil.CreateChainWorkflow("A", "B", "C")
	workflow.Nodes[0], workflow.Nodes[2] = workflow.Nodes[2], workflow.Nodes[0]

	order, err := workflow.TopologicalOrder()
	require.NoError(t, err)

	names := make([]string, 0, len(order))
	for _, node := range order {
		names = append(names, node.Name)
	}

	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestWorkflow_TopologicalOrder_Cycle(t *testing.T) {
	workflow := testutil.CreateChainWorkflow("A", "B")
	workflow.Connections = append(workflow.Connections,
		testutil.CreateTestConnection(workflow.Nodes[1], workflow.Nodes[0]))

	_, err := workflow.TopologicalOrder()
	assert.ErrorIs(t, err, models.ErrCycle)
}

func TestWorkflow_Ancestors(t *testing.T) {
	workflow := testutil.CreateChainWorkflow("A", "B", "C")
	a, b, c := workflow.Nodes[0], workflow.Nodes[1], workflow.Nodes[2]

	assert.Empty(t, workflow.Ancestors(a.ID))
	assert.Equal(t, map[string]struct{}{a.ID: {}}, workflow.Ancestors(b.ID))
	assert.Equal(t, map[string]struct{}{a.ID: {}, b.ID: {}}, workflow.Ancestors(c.ID))
	assert.Equal(t, []string{b.ID}, workflow.DirectPredecessors(c.ID))
}

func TestWorkflow_CloneWithFreshIDs(t *testing.T) {
	original := testutil.CreateTestWorkflowWithNodes()
	original.Nodes[1].Parameters = map[string]any{"nested": map[string]any{"key": "value"}}

	clone := original.CloneWithFreshIDs()

	assert.NotEqual(t, original.ID, clone.ID)
	require.Len(t, clone.Nodes, 2)

	for i, node := range clone.Nodes {
		assert.NotEqual(t, original.Nodes[i].ID, node.ID)
		assert.Equal(t, original.Nodes[i].Name, node.Name)

		for _, port := range node.Outputs {
			nodeID, _, ok := models.ParsePortID(port.ID)
			require.True(t, ok)
			assert.Equal(t, node.ID, nodeID)
		}
	}

	conn := clone.Connections[0]
	assert.NotEqual(t, original.Connections[0].ID, conn.ID)
	assert.Equal(t, clone.Nodes[0].ID, conn.SourceNodeID)
	assert.Equal(t, clone.Nodes[1].ID, conn.TargetNodeID)
	assert.Equal(t, models.MakePortID(clone.Nodes[1].ID, "main"), conn.TargetPortID)

	clone.Nodes[1].Parameters["nested"].(map[string]any)["key"] = "changed"
	assert.Equal(t, "value", original.Nodes[1].Parameters["nested"].(map[string]any)["key"])

	require.NoError(t, models.Validate(clone))
}

func TestTemplate_NewWorkflow(t *testing.T) {
	source := testutil.CreateTestWorkflowWithNodes()
	template := &models.WorkflowTemplate{
		ID:       "tpl-1",
		Name:     "Starter",
		Category: "marketing",
		Tags:     []string{"starter"},
		Workflow: models.TemplateBody(source),
	}

	workflow := template.NewWorkflow("My Flow")

	assert.Equal(t, "My Flow", workflow.Name)
	assert.Equal(t, "marketing", workflow.Metadata.Category)
	assert.Equal(t, []string{"starter"}, workflow.Tags)
	assert.NotEqual(t, source.Nodes[0].ID, workflow.Nodes[0].ID)
	assert.NotEqual(t, template.Workflow.Nodes[0].ID, workflow.Nodes[0].ID)
	assert.Equal(t, source.Nodes[0].Name, workflow.Nodes[0].Name)
}
