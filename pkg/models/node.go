package models

import "time"

// NodeType is the type tag of a workflow node. Each tag maps to a catalog
// capability via the registry.
type NodeType string

const (
	NodeTypeInput          NodeType = "input"
	NodeTypeOutput         NodeType = "output"
	NodeTypeLLM            NodeType = "llm"
	NodeTypeImageGenerator NodeType = "image_generator"
	NodeTypeVideoGenerator NodeType = "video_generator"
	NodeTypeTextAnalyzer   NodeType = "text_analyzer"
	NodeTypeConditional    NodeType = "conditional"
	NodeTypeLoop           NodeType = "loop"
)

// Connection is a directed edge between two nodes of the same workflow.
type Connection struct {
	ID         string `json:"id"`
	SourceNode string `json:"source_node" validate:"required"`
	TargetNode string `json:"target_node" validate:"required"`
}

// WorkflowNode represents a node instance in a workflow. Config is the
// free-form configuration map validated against the node type's JSON schema
// at save time; node constructors parse it into their own typed fields.
// Position is presentation-only and irrelevant to execution semantics.
type WorkflowNode struct {
	ID        string         `json:"id"   validate:"required"`
	Type      NodeType       `json:"type" validate:"required"`
	Config    map[string]any `json:"config"`
	PositionX int            `json:"position_x"`
	PositionY int            `json:"position_y"`
}

// NodeStatus defines the possible states of a node visit.
type NodeStatus string

const (
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
)

// NodeResult is what a node execution produced. Output is merged into the
// execution bindings. Branch, when set, short-circuits the graph walk into
// the named node instead of following outbound connections. Terminal marks
// the end of the branch (output nodes).
type NodeResult struct {
	NodeID   string         `json:"node_id"`
	Output   map[string]any `json:"output"`
	Usage    TokenUsage     `json:"usage"`
	Cost     int64          `json:"cost"`
	Branch   string         `json:"branch,omitempty"`
	Terminal bool           `json:"terminal,omitempty"`
}

// NodeLog is the persisted record of one node visit.
type NodeLog struct {
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	Status      NodeStatus     `json:"status"`
	Data        map[string]any `json:"data,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}
