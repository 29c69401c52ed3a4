package input

import (
	"context"

	"github.com/loomworks/loom/pkg/protocol"
)

// NodeFactory creates InputNode instances.
type NodeFactory struct{}

// Create creates a new InputNode instance.
func (f *NodeFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Node, error) {
	return NewInputNode(id), nil
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return "input"
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Input"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Execution root. Passes the initiating payload to downstream nodes unchanged."
}

// Schema returns the JSON schema for input node configuration.
func (f *NodeFactory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory() protocol.NodeFactory {
	return &NodeFactory{}
}
