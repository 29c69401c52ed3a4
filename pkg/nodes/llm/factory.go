package llm

import (
	"context"

	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/reasoning"
)

// NodeFactory creates LLMNode instances bound to a reasoning provider and a
// token ledger.
type NodeFactory struct {
	provider reasoning.Provider
	ledger   *ledger.Ledger
}

// Create creates a new LLMNode instance.
func (f *NodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewLLMNode(id, config, f.provider, f.ledger)
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return "llm"
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Language Model"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Sends an interpolated prompt to the configured language model and stores the completion text."
}

// Schema returns the JSON schema for llm node configuration.
func (f *NodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "User prompt. Supports {{key}} placeholders resolved against the bindings.",
			},
			"system_prompt": map[string]any{
				"type":        "string",
				"description": "Optional system prompt. Supports the same placeholder syntax.",
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Model identifier. Defaults to the provider's configured model.",
			},
			"output_key": map[string]any{
				"type":        "string",
				"description": "Binding key for the completion text.",
				"default":     defaultOutputKey,
			},
		},
		"required": []string{"prompt"},
	}
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory(provider reasoning.Provider, billing *ledger.Ledger) protocol.NodeFactory {
	return &NodeFactory{provider: provider, ledger: billing}
}
