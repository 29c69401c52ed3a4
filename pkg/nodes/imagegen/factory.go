package imagegen

import (
	"context"

	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/protocol"
)

// NodeFactory creates ImageNode instances bound to a generation provider and
// a token ledger.
type NodeFactory struct {
	provider protocol.GenerationProvider
	ledger   *ledger.Ledger
}

// Create creates a new ImageNode instance.
func (f *NodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewImageNode(id, config, f.provider, f.ledger)
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return "image_generator"
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Image Generator"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Generates an image from an interpolated prompt and stores the asset reference."
}

// Schema returns the JSON schema for image generator node configuration.
func (f *NodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Generation prompt. Supports {{key}} placeholders resolved against the bindings.",
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Generation model identifier.",
				"default":     defaultModel,
			},
			"output_key": map[string]any{
				"type":        "string",
				"description": "Binding key for the generated asset reference.",
				"default":     defaultOutputKey,
			},
		},
		"required": []string{"prompt"},
	}
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory(provider protocol.GenerationProvider, billing *ledger.Ledger) protocol.NodeFactory {
	return &NodeFactory{provider: provider, ledger: billing}
}
