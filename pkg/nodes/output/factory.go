package output

import (
	"context"

	"github.com/loomworks/loom/pkg/protocol"
)

// NodeFactory creates OutputNode instances.
type NodeFactory struct{}

// Create creates a new OutputNode instance.
func (f *NodeFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Node, error) {
	return NewOutputNode(id), nil
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return "output"
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Output"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Terminal marker. Returns its input unchanged and completes the branch."
}

// Schema returns the JSON schema for output node configuration.
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
