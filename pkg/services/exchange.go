package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/flowsmith/pkg/events"
	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/otelhelper"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// Format is a workflow interchange format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" and "yml" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// yamlWorkflow is the structural subset written by the YAML export and
// accepted by the YAML import.
type yamlWorkflow struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Version     string           `yaml:"version"`
	Nodes       []yamlNode       `yaml:"nodes"`
	Connections []yamlConnection `yaml:"connections"`
}

type yamlNode struct {
	ID         string          `yaml:"id"`
	Type       string          `yaml:"type"`
	Name       string          `yaml:"name"`
	Position   models.Position `yaml:"position"`
	Parameters map[string]any  `yaml:"parameters"`
}

type yamlConnection struct {
	ID         string `yaml:"id"`
	Source     string `yaml:"source"`
	Target     string `yaml:"target"`
	SourcePort string `yaml:"sourcePort,omitempty"`
	TargetPort string `yaml:"targetPort,omitempty"`
}

func toYAML(w *models.Workflow) yamlWorkflow {
	doc := yamlWorkflow{
		Name:        w.Name,
		Description: w.Description,
		Version:     w.Version,
		Nodes:       make([]yamlNode, 0, len(w.Nodes)),
		Connections: make([]yamlConnection, 0, len(w.Connections)),
	}

	for _, node := range w.Nodes {
		doc.Nodes = append(doc.Nodes, yamlNode{
			ID:         node.ID,
			Type:       node.Type,
			Name:       node.Name,
			Position:   node.Position,
			Parameters: node.Parameters,
		})
	}

	for _, conn := range w.Connections {
		doc.Connections = append(doc.Connections, yamlConnection{
			ID:         conn.ID,
			Source:     conn.SourceNodeID,
			Target:     conn.TargetNodeID,
			SourcePort: conn.SourcePortID,
			TargetPort: conn.TargetPortID,
		})
	}

	return doc
}

func (doc yamlWorkflow) workflow() *models.Workflow {
	w := &models.Workflow{
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		Nodes:       make([]*models.Node, 0, len(doc.Nodes)),
		Connections: make([]*models.Connection, 0, len(doc.Connections)),
	}

	for _, node := range doc.Nodes {
		w.Nodes = append(w.Nodes, &models.Node{
			ID:         node.ID,
			Type:       node.Type,
			Name:       node.Name,
			Position:   node.Position,
			Parameters: node.Parameters,
		})
	}

	for _, conn := range doc.Connections {
		w.Connections = append(w.Connections, &models.Connection{
			ID:           conn.ID,
			SourceNodeID: conn.Source,
			TargetNodeID: conn.Target,
			SourcePortID: conn.SourcePort,
			TargetPortID: conn.TargetPort,
		})
	}

	return w
}

// Export serializes the stored workflow. JSON carries the full aggregate,
// YAML only the structural subset.
func (m *Manager) Export(ctx context.Context, id string, format Format) ([]byte, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.export",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.ExportFormatKey, string(format)))
	defer span.End()

	w, err := m.Load(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	switch format {
	case FormatJSON:
		return json.MarshalIndent(w, "", "  ")
	case FormatYAML:
		var buf bytes.Buffer

		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)

		if err := enc.Encode(toYAML(w)); err != nil {
			return nil, fmt.Errorf("failed to encode workflow as yaml: %w", err)
		}

		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode workflow as yaml: %w", err)
		}

		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Import parses data, checks its shape, assigns fresh identifiers the way
// Duplicate does and saves the result. Malformed input fails with a
// *FormatError before anything is written.
func (m *Manager) Import(ctx context.Context, data []byte, format Format) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "manager.import",
		attribute.String(otelhelper.ExportFormatKey, string(format)))
	defer span.End()

	parsed, err := decodeWorkflow(data, format)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	// Ids are regenerated below, so the source document is checked first:
	// duplicate node ids would otherwise collapse into one fresh id.
	applyDefaults(parsed)

	if err := models.Validate(parsed); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("import workflow: %w", err)
	}

	w := parsed.CloneWithFreshIDs()

	unlock := m.locks.Lock(workflowKey(w.ID))
	defer unlock()

	saved, _, err := m.saveLocked(ctx, w)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	m.publish(ctx, saved.ID, events.WorkflowImported{
		BaseEvent: events.NewBaseEvent(events.WorkflowImportedEvent, saved.ID),
		Name:      saved.Name,
		Format:    string(format),
	})

	return saved, nil
}

func decodeWorkflow(data []byte, format Format) (*models.Workflow, error) {
	switch format {
	case FormatJSON:
		if err := checkShape(format, jsonImportSchema, gojsonschema.NewBytesLoader(data)); err != nil {
			return nil, err
		}

		var w models.Workflow
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, &FormatError{Format: string(format), Reason: "malformed document", Err: err}
		}

		return &w, nil
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &FormatError{Format: string(format), Reason: "malformed document", Err: err}
		}

		if err := checkShape(format, yamlImportSchema, gojsonschema.NewGoLoader(raw)); err != nil {
			return nil, err
		}

		var doc yamlWorkflow
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &FormatError{Format: string(format), Reason: "malformed document", Err: err}
		}

		return doc.workflow(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func checkShape(format Format, schema string, document gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), document)
	if err != nil {
		return &FormatError{Format: string(format), Reason: "malformed document", Err: err}
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return &FormatError{Format: string(format), Reason: strings.Join(details, "; ")}
}

const jsonImportSchema = `{
  "type": "object",
  "required": ["name", "nodes", "connections"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "version": {"type": "string"},
    "tags": {"type": ["array", "null"], "items": {"type": "string"}},
    "variables": {"type": ["object", "null"]},
    "settings": {"type": ["object", "null"]},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "name"],
        "properties": {
          "id": {"type": "string"},
          "type": {"type": "string"},
          "name": {"type": "string"},
          "parameters": {"type": ["object", "null"]},
          "inputs": {"type": ["array", "null"]},
          "outputs": {"type": ["array", "null"]}
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["sourceNodeId", "targetNodeId"],
        "properties": {
          "id": {"type": "string"},
          "sourceNodeId": {"type": "string"},
          "targetNodeId": {"type": "string"},
          "sourcePortId": {"type": "string"},
          "targetPortId": {"type": "string"}
        }
      }
    }
  }
}`

const yamlImportSchema = `{
  "type": "object",
  "required": ["name", "nodes", "connections"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": ["string", "null"]},
    "version": {"type": ["string", "null"]},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "name"],
        "properties": {
          "id": {"type": "string"},
          "type": {"type": "string"},
          "name": {"type": "string"},
          "parameters": {"type": ["object", "null"]}
        }
      }
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "id": {"type": "string"},
          "source": {"type": "string"},
          "target": {"type": "string"}
        }
      }
    }
  }
}`
