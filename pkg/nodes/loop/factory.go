package loop

import (
	"context"

	"github.com/loomworks/loom/pkg/protocol"
)

// NodeFactory creates LoopNode instances.
type NodeFactory struct{}

// Create creates a new LoopNode instance.
func (f *NodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewLoopNode(id, config)
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return "loop"
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Loop"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Repeats a body branch while a bound condition holds, up to an iteration cap."
}

// Schema returns the JSON schema for loop node configuration.
func (f *NodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"type":        "string",
				"description": "Binding key evaluated for truthiness before each iteration.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Node ID of the loop body entry point.",
			},
			"exit": map[string]any{
				"type":        "string",
				"description": "Node ID to continue from when the loop finishes. Omit to terminate the branch.",
			},
			"max_iterations": map[string]any{
				"type":        "integer",
				"description": "Hard cap on iterations.",
				"default":     defaultMaxIterations,
				"minimum":     1,
			},
		},
		"required": []string{"condition", "body"},
	}
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}
