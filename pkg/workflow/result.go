package workflow

import (
	"time"

	"github.com/dukex/flowsmith/pkg/errorhandler"
)

// NodeStatus is the final state of one node in a run.
type NodeStatus string

const (
	NodeStatusSuccess   NodeStatus = "success"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusDisabled  NodeStatus = "disabled"
	NodeStatusCancelled NodeStatus = "cancelled"
)

// ExecutionStatus is the final state of a run.
type ExecutionStatus string

const (
	ExecutionSuccess   ExecutionStatus = "success"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// NodeResult records how one node ended. Continued is set when the node
// failed but the error policy let the run go on.
type NodeResult struct {
	NodeID    string                      `json:"nodeId"`
	NodeName  string                      `json:"nodeName"`
	NodeType  string                      `json:"nodeType"`
	Status    NodeStatus                  `json:"status"`
	Attempts  int                         `json:"attempts"`
	Output    any                         `json:"output,omitempty"`
	Error     *errorhandler.WorkflowError `json:"error,omitempty"`
	Continued bool                        `json:"continued,omitempty"`
	Duration  time.Duration               `json:"duration"`
}

// ExecutionResult is the outcome of one run, nodes in execution order.
type ExecutionResult struct {
	ExecutionID string          `json:"executionId"`
	WorkflowID  string          `json:"workflowId"`
	Status      ExecutionStatus `json:"status"`
	Nodes       []NodeResult    `json:"nodes"`
	// Outputs holds the output of every node that produced one, by node name.
	Outputs    map[string]any `json:"outputs"`
	Err        error          `json:"-"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// Node returns the result of the node with name, or nil.
func (r *ExecutionResult) Node(name string) *NodeResult {
	for i := range r.Nodes {
		if r.Nodes[i].NodeName == name {
			return &r.Nodes[i]
		}
	}

	return nil
}

func (r *ExecutionResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
