package textanalyzer

import (
	"context"

	"github.com/loomworks/loom/pkg/protocol"
)

// NodeFactory creates AnalyzerNode instances bound to an analysis provider.
type NodeFactory struct {
	provider protocol.AnalysisProvider
}

// Create creates a new AnalyzerNode instance.
func (f *NodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewAnalyzerNode(id, config, f.provider)
}

// ID returns the factory ID.
func (f *NodeFactory) ID() string {
	return "text_analyzer"
}

// Name returns the factory name.
func (f *NodeFactory) Name() string {
	return "Text Analyzer"
}

// Description returns the factory description.
func (f *NodeFactory) Description() string {
	return "Runs structured analysis over a bound value and stores the result."
}

// Schema returns the JSON schema for text analyzer node configuration.
func (f *NodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input_key": map[string]any{
				"type":        "string",
				"description": "Binding key of the value to analyze.",
			},
			"output_key": map[string]any{
				"type":        "string",
				"description": "Binding key for the analysis result.",
				"default":     defaultOutputKey,
			},
		},
		"required": []string{"input_key"},
	}
}

// NewNodeFactory creates a new factory instance.
func NewNodeFactory(provider protocol.AnalysisProvider) protocol.NodeFactory {
	return &NodeFactory{provider: provider}
}
