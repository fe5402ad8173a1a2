// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/flowsmith/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	id := uuid.New().String()
	node := &models.Node{
		ID:         id,
		Type:       "noop",
		Name:       "Test Node",
		Position:   models.Position{X: 100, Y: 200},
		Parameters: map[string]any{"message": "test"},
		Inputs:     []models.Port{{ID: models.MakePortID(id, "main"), Name: "main", Type: models.PortTypeData}},
		Outputs:    []models.Port{{ID: models.MakePortID(id, "main"), Name: "main", Type: models.PortTypeData}},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithTriggerNode configures the node as a webhook trigger.
func WithTriggerNode() func(*models.Node) {
	return func(n *models.Node) {
		n.Type = models.NodeTypeWebhook
		n.Inputs = nil
		n.Outputs = []models.Port{{ID: models.MakePortID(n.ID, "main"), Name: "main", Type: models.PortTypeTrigger}}
		n.Parameters = map[string]any{
			"path":   "/webhook/test",
			"method": "POST",
		}
	}
}

// WithParameters sets the node parameters.
func WithParameters(params map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Parameters = params
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithPosition sets the node position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// WithDisabled marks the node as disabled.
func WithDisabled(disabled bool) func(*models.Node) {
	return func(n *models.Node) {
		n.Disabled = disabled
	}
}

// WithType sets the node type.
func WithType(nodeType string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithID sets the node ID and rewrites its port ids accordingly.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id

		for i := range n.Inputs {
			n.Inputs[i].ID = models.MakePortID(id, n.Inputs[i].Name)
		}

		for i := range n.Outputs {
			n.Outputs[i].ID = models.MakePortID(id, n.Outputs[i].Name)
		}
	}
}

// CreateTestWorkflow creates an empty test workflow.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "A workflow for testing",
		Version:     models.DefaultVersion,
		CreatedBy:   "test-user",
		Tags:        []string{"test"},
		Variables:   map[string]any{"env": "test"},
		Metadata:    models.WorkflowMetadata{Category: "test"},
		Nodes:       []*models.Node{},
		Connections: []*models.Connection{},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// CreateTestWorkflowWithNodes creates a test workflow with a trigger wired to one action.
func CreateTestWorkflowWithNodes() *models.Workflow {
	workflow := CreateTestWorkflow()

	triggerNode := CreateTestNode(WithID("trigger-1"), WithTriggerNode(), WithName("Trigger"))
	actionNode := CreateTestNode(WithID("action-1"), WithName("Log Action"))

	workflow.Nodes = []*models.Node{triggerNode, actionNode}
	workflow.Connections = []*models.Connection{CreateTestConnection(triggerNode, actionNode)}

	return workflow
}

// CreateChainWorkflow creates a workflow whose nodes are connected in the given order.
func CreateChainWorkflow(names ...string) *models.Workflow {
	workflow := CreateTestWorkflow()

	var previous *models.Node

	for _, name := range names {
		node := CreateTestNode(WithName(name))
		workflow.Nodes = append(workflow.Nodes, node)

		if previous != nil {
			workflow.Connections = append(workflow.Connections, CreateTestConnection(previous, node))
		}

		previous = node
	}

	return workflow
}

// CreateTestConnection creates a test connection between the main ports of two nodes.
func CreateTestConnection(source, target *models.Node) *models.Connection {
	return &models.Connection{
		ID:           uuid.New().String(),
		SourceNodeID: source.ID,
		SourcePortID: models.MakePortID(source.ID, "main"),
		TargetNodeID: target.ID,
		TargetPortID: models.MakePortID(target.ID, "main"),
	}
}
