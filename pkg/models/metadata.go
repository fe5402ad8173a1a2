package models

import "time"

// Difficulty is a coarse complexity rating derived from the node count.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// estimatedNodeRunTime is the heuristic per-node run time in milliseconds.
const estimatedNodeRunTime = 2000

// WorkflowMetadata is a denormalized summary recomputed on every save.
type WorkflowMetadata struct {
	Category         string     `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	EstimatedRunTime int        `json:"estimatedRunTime"` // ms
	NodeCount        int        `json:"nodeCount"`
	ConnectionCount  int        `json:"connectionCount"`
	ExecutionCount   int        `json:"executionCount"`
	SuccessRate      float64    `json:"successRate"`
	LastExecuted     *time.Time `json:"lastExecuted,omitempty"`
}

// DifficultyFor derives the difficulty for a node count.
func DifficultyFor(nodeCount int) Difficulty {
	switch {
	case nodeCount > 10:
		return DifficultyAdvanced
	case nodeCount > 5:
		return DifficultyIntermediate
	default:
		return DifficultyBeginner
	}
}

// ComputeMetadata recomputes the structural summary of the workflow.
// Category and execution statistics are carried over from the current metadata.
func ComputeMetadata(w *Workflow) WorkflowMetadata {
	meta := w.Metadata

	meta.NodeCount = len(w.Nodes)
	meta.ConnectionCount = len(w.Connections)
	meta.Difficulty = DifficultyFor(meta.NodeCount)
	meta.EstimatedRunTime = estimatedNodeRunTime * meta.NodeCount

	if meta.Category == "" {
		meta.Category = "general"
	}

	return meta
}

// RecordExecution folds one execution outcome into the running statistics.
func (m *WorkflowMetadata) RecordExecution(success bool, at time.Time) {
	successes := m.SuccessRate * float64(m.ExecutionCount)
	if success {
		successes++
	}

	m.ExecutionCount++
	m.SuccessRate = successes / float64(m.ExecutionCount)

	executed := at.UTC()
	m.LastExecuted = &executed
}
