package conditional

import (
	"context"

	"github.com/loomworks/loom/pkg/protocol"
)

// NodeFactory creates ConditionalNode instances.
type NodeFactory struct{}

// Create creates a new ConditionalNode instance.
func (f *NodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewConditionalNode(id, config)
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return "conditional"
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Conditional"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Routes execution to one of two branches based on the truthiness of a bound value."
}

// Schema returns the JSON schema for conditional node configuration.
func (f *NodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "Binding key evaluated for truthiness. Absent keys evaluate false.",
			},
			"true_branch": map[string]any{
				"type":        "string",
				"description": "Node ID to continue from when the condition holds.",
			},
			"false_branch": map[string]any{
				"type":        "string",
				"description": "Node ID to continue from when the condition does not hold.",
			},
		},
		"required": []string{"condition", "true_branch", "false_branch"},
	}
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}
