// Package textanalyzer provides the text analysis node. It reads a value
// produced by an upstream node and stores the structured analysis of it.
package textanalyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

const defaultOutputKey = "analysis"

// AnalyzerNode invokes an external text analysis capability.
type AnalyzerNode struct {
	id        string
	inputKey  string
	outputKey string
	provider  protocol.AnalysisProvider
}

// NewAnalyzerNode creates a new text analysis node.
func NewAnalyzerNode(id string, config map[string]any, provider protocol.AnalysisProvider) (*AnalyzerNode, error) {
	if provider == nil {
		return nil, fmt.Errorf("analysis provider not configured")
	}

	inputKey, ok := config["input_key"].(string)
	if !ok || inputKey == "" {
		return nil, protocol.InvalidConfigError("input_key")
	}

	outputKey, _ := config["output_key"].(string)
	if outputKey == "" {
		outputKey = defaultOutputKey
	}

	return &AnalyzerNode{
		id:        id,
		inputKey:  inputKey,
		outputKey: outputKey,
		provider:  provider,
	}, nil
}

// ID returns the node ID.
func (n *AnalyzerNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *AnalyzerNode) Type() models.NodeType {
	return models.NodeTypeTextAnalyzer
}

// Execute analyzes the bound input value and stores the structured result.
// The input binding must exist; analysis of absent data is a wiring mistake,
// not an empty result.
func (n *AnalyzerNode) Execute(ctx context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	value, ok := execCtx.Bindings[n.inputKey]
	if !ok {
		return nil, fmt.Errorf("%w: input binding '%s' not found", protocol.ErrInvalidNodeConfig, n.inputKey)
	}

	analysis, err := n.provider.Analyze(ctx, stringify(value))
	if err != nil {
		return nil, protocol.NewCapabilityError(n.id, models.NodeTypeTextAnalyzer, err)
	}

	return &models.NodeResult{
		NodeID: n.id,
		Output: map[string]any{n.outputKey: analysis},
	}, nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
