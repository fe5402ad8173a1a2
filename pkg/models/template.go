package models

import "time"

// WorkflowTemplate is a reusable, anonymized workflow body.
type WorkflowTemplate struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Tags        []string         `json:"tags"`
	Difficulty  Difficulty       `json:"difficulty"`
	Preview     string           `json:"preview,omitempty"`
	UsageCount  int              `json:"usageCount"`
	Rating      float64          `json:"rating"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Workflow    TemplateWorkflow `json:"workflow"`
}

// TemplateWorkflow holds the structural part of a workflow, without identity or ownership.
type TemplateWorkflow struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Version     string            `json:"version"`
	Nodes       []*Node           `json:"nodes"`
	Connections []*Connection     `json:"connections"`
	Settings    *WorkflowSettings `json:"settings,omitempty"`
	Variables   map[string]any    `json:"variables"`
	Metadata    WorkflowMetadata  `json:"metadata"`
}

// TemplateBody snapshots the structural fields of w as a deep copy.
func TemplateBody(w *Workflow) TemplateWorkflow {
	c := w.Clone()

	meta := c.Metadata
	meta.ExecutionCount = 0
	meta.SuccessRate = 0
	meta.LastExecuted = nil

	return TemplateWorkflow{
		Name:        c.Name,
		Description: c.Description,
		Version:     c.Version,
		Nodes:       c.Nodes,
		Connections: c.Connections,
		Settings:    c.Settings,
		Variables:   c.Variables,
		Metadata:    meta,
	}
}

// NewWorkflow builds an unsaved workflow from the template body with fresh node
// and connection identifiers.
func (t *WorkflowTemplate) NewWorkflow(name string) *Workflow {
	body := &Workflow{
		Name:        t.Workflow.Name,
		Description: t.Workflow.Description,
		Version:     t.Workflow.Version,
		Tags:        append([]string(nil), t.Tags...),
		Nodes:       t.Workflow.Nodes,
		Connections: t.Workflow.Connections,
		Settings:    t.Workflow.Settings,
		Variables:   t.Workflow.Variables,
		Metadata:    WorkflowMetadata{Category: t.Category},
	}

	if body.Name == "" {
		body.Name = t.Name
	}

	if name != "" {
		body.Name = name
	}

	return body.CloneWithFreshIDs()
}

// Clone returns a deep copy of the template.
func (t *WorkflowTemplate) Clone() *WorkflowTemplate {
	c := *t
	c.Tags = append([]string(nil), t.Tags...)

	body := (&Workflow{
		Nodes:       t.Workflow.Nodes,
		Connections: t.Workflow.Connections,
		Settings:    t.Workflow.Settings,
		Variables:   t.Workflow.Variables,
		Metadata:    t.Workflow.Metadata,
	}).Clone()

	c.Workflow = TemplateWorkflow{
		Name:        t.Workflow.Name,
		Description: t.Workflow.Description,
		Version:     t.Workflow.Version,
		Nodes:       body.Nodes,
		Connections: body.Connections,
		Settings:    body.Settings,
		Variables:   body.Variables,
		Metadata:    body.Metadata,
	}

	return &c
}
