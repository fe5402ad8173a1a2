package models

// Built-in node types the core knows how to preview.
const (
	NodeTypeWebhook   = "webhook"
	NodeTypeSchedule  = "schedule"
	NodeTypeCron      = "cron"
	NodeTypeManual    = "manual"
	NodeTypeHTTP      = "http"
	NodeTypeCondition = "condition"
	NodeTypeEmail     = "email"
	NodeTypeGmail     = "gmail"
	NodeTypeSlack     = "slack"
	NodeTypeJira      = "jira"
	NodeTypeTransform = "transform"
)

// PortType describes what kind of data travels through a port.
type PortType string

const (
	PortTypeTrigger   PortType = "trigger"
	PortTypeData      PortType = "data"
	PortTypeCondition PortType = "condition"
	PortTypeAny       PortType = "any"
)

// Position is the canvas location of a node. It has no effect on execution.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Port represents a connection point on a node.
type Port struct {
	ID   string   `json:"id"   validate:"required"`
	Name string   `json:"name"`
	Type PortType `json:"type"`
}

// Node represents one step of a workflow.
type Node struct {
	ID         string         `json:"id"         validate:"required"`
	Type       string         `json:"type"       validate:"required"`
	Name       string         `json:"name"       validate:"required"`
	Position   Position       `json:"position"`
	Parameters map[string]any `json:"parameters"`
	Inputs     []Port         `json:"inputs"     validate:"dive"`
	Outputs    []Port         `json:"outputs"    validate:"dive"`
	Disabled   bool           `json:"disabled,omitempty"`
	Notes      string         `json:"notes,omitempty"`
}

// IsTrigger reports whether the node starts a workflow rather than reacting to upstream data.
func (n *Node) IsTrigger() bool {
	switch n.Type {
	case NodeTypeWebhook, NodeTypeSchedule, NodeTypeCron, NodeTypeManual:
		return true
	}

	for _, port := range n.Outputs {
		if port.Type == PortTypeTrigger {
			return len(n.Inputs) == 0
		}
	}

	return false
}

// Connection is a directed edge from one node's output port to another node's input port.
type Connection struct {
	ID           string `json:"id"           validate:"required"`
	SourceNodeID string `json:"sourceNodeId" validate:"required"`
	SourcePortID string `json:"sourcePortId"`
	TargetNodeID string `json:"targetNodeId" validate:"required"`
	TargetPortID string `json:"targetPortId"`
}

// ParsePortID parses a port ID in format "{node_id}:{port_name}" into components.
func ParsePortID(portID string) (string, string, bool) {
	for i := range len(portID) {
		if portID[i] == ':' {
			return portID[:i], portID[i+1:], true
		}
	}

	return "", "", false
}

// MakePortID creates a port ID from node ID and port name.
func MakePortID(nodeID, portName string) string {
	return nodeID + ":" + portName
}
