// Package models defines the core domain models for node-based workflow automation
package models

import (
	"strings"
	"time"
)

// DefaultVersion is assigned to workflows saved without a version.
const DefaultVersion = "1.0.0"

// Workflow is the aggregate root of a node-based workflow definition.
type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"                  validate:"required"`
	Description string            `json:"description"`
	Version     string            `json:"version"               validate:"required"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	CreatedBy   string            `json:"createdBy"`
	Tags        []string          `json:"tags"`
	Active      bool              `json:"active"`
	Nodes       []*Node           `json:"nodes"                 validate:"dive"`
	Connections []*Connection     `json:"connections"           validate:"dive"`
	Settings    *WorkflowSettings `json:"settings,omitempty"`
	Variables   map[string]any    `json:"variables"`
	Metadata    WorkflowMetadata  `json:"metadata"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node != nil && node.ID == id {
			return node
		}
	}

	return nil
}

// NodeByName returns the node with the given name, or nil.
func (w *Workflow) NodeByName(name string) *Node {
	for _, node := range w.Nodes {
		if node != nil && node.Name == name {
			return node
		}
	}

	return nil
}

// EffectiveSettings returns the workflow settings, falling back to defaults.
func (w *Workflow) EffectiveSettings() WorkflowSettings {
	if w.Settings == nil {
		return DefaultSettings()
	}

	settings := *w.Settings
	settings.ApplyDefaults()

	return settings
}

// HasTag reports whether the workflow carries the tag (case-insensitive).
func (w *Workflow) HasTag(tag string) bool {
	for _, t := range w.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}

	return false
}

// NormalizeTags trims, drops empty entries and removes duplicates while keeping order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		if _, ok := seen[tag]; ok {
			continue
		}

		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	return out
}
