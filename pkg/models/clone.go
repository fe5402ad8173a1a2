package models

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	c := *w
	c.Tags = append([]string(nil), w.Tags...)
	c.Variables = copyMap(w.Variables)

	if w.Settings != nil {
		settings := *w.Settings
		c.Settings = &settings
	}

	if w.Metadata.LastExecuted != nil {
		last := *w.Metadata.LastExecuted
		c.Metadata.LastExecuted = &last
	}

	if w.Nodes != nil {
		c.Nodes = make([]*Node, len(w.Nodes))
		for i, node := range w.Nodes {
			c.Nodes[i] = node.Clone()
		}
	}

	if w.Connections != nil {
		c.Connections = make([]*Connection, len(w.Connections))
		for i, conn := range w.Connections {
			if conn != nil {
				cc := *conn
				c.Connections[i] = &cc
			}
		}
	}

	return &c
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	c := *n
	c.Parameters = copyMap(n.Parameters)
	c.Inputs = append([]Port(nil), n.Inputs...)
	c.Outputs = append([]Port(nil), n.Outputs...)

	return &c
}

// CloneWithFreshIDs deep-copies the workflow and regenerates the root id and
// every node and connection id. Node names are preserved. Timestamps and
// execution statistics are reset.
func (w *Workflow) CloneWithFreshIDs() *Workflow {
	c := w.Clone()
	c.ID = uuid.NewString()
	c.CreatedAt = time.Time{}
	c.UpdatedAt = time.Time{}
	c.Metadata.ExecutionCount = 0
	c.Metadata.SuccessRate = 0
	c.Metadata.LastExecuted = nil

	remap := make(map[string]string, len(c.Nodes))

	for _, node := range c.Nodes {
		if node == nil {
			continue
		}

		fresh := uuid.NewString()
		remap[node.ID] = fresh
		node.ID = fresh
	}

	for _, node := range c.Nodes {
		if node == nil {
			continue
		}

		remapPorts(node.Inputs, remap)
		remapPorts(node.Outputs, remap)
	}

	for _, conn := range c.Connections {
		if conn == nil {
			continue
		}

		conn.ID = uuid.NewString()
		conn.SourceNodeID = remapID(conn.SourceNodeID, remap)
		conn.TargetNodeID = remapID(conn.TargetNodeID, remap)
		conn.SourcePortID = remapPortID(conn.SourcePortID, remap)
		conn.TargetPortID = remapPortID(conn.TargetPortID, remap)
	}

	return c
}

func remapID(id string, remap map[string]string) string {
	if fresh, ok := remap[id]; ok {
		return fresh
	}

	return id
}

func remapPortID(portID string, remap map[string]string) string {
	nodeID, port, ok := ParsePortID(portID)
	if !ok {
		return portID
	}

	if fresh, found := remap[nodeID]; found {
		return MakePortID(fresh, port)
	}

	return portID
}

func remapPorts(ports []Port, remap map[string]string) {
	for i := range ports {
		ports[i].ID = remapPortID(ports[i].ID, remap)
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}

	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}

		return out
	case []string:
		return append([]string(nil), val...)
	case map[string]string:
		return maps.Clone(val)
	default:
		return v
	}
}
