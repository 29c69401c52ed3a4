package videogen

import (
	"context"

	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/protocol"
)

// NodeFactory creates VideoNode instances bound to a generation provider and
// a token ledger.
type NodeFactory struct {
	provider protocol.GenerationProvider
	ledger   *ledger.Ledger
}

// Create creates a new VideoNode instance.
func (f *NodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewVideoNode(id, config, f.provider, f.ledger)
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return "video_generator"
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Video Generator"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Generates a video from an interpolated prompt and stores the asset reference."
}

// Schema returns the JSON schema for video generator node configuration.
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
