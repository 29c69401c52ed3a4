// Package llm provides the language-model node. It interpolates a prompt
// pair against the current bindings, drives a reasoning provider call through
// the token ledger, and stores the textual result at the configured output key.
package llm

import (
	"context"
	"errors"

	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/reasoning"
	"github.com/loomworks/loom/pkg/template"
)

const defaultOutputKey = "response"

// LLMNode invokes an external language-model capability.
type LLMNode struct {
	id           string
	prompt       string
	systemPrompt string
	model        string
	outputKey    string
	provider     reasoning.Provider
	ledger       *ledger.Ledger
}

// NewLLMNode creates a new language-model node.
func NewLLMNode(id string, config map[string]any, provider reasoning.Provider, billing *ledger.Ledger) (*LLMNode, error) {
	if provider == nil {
		return nil, errors.New("reasoning provider not configured")
	}

	prompt, ok := config["prompt"].(string)
	if !ok || prompt == "" {
		return nil, protocol.InvalidConfigError("prompt")
	}

	systemPrompt, _ := config["system_prompt"].(string)

	model, _ := config["model"].(string)
	if model == "" {
		model = provider.Info().Model
	}

	outputKey, _ := config["output_key"].(string)
	if outputKey == "" {
		outputKey = defaultOutputKey
	}

	return &LLMNode{
		id:           id,
		prompt:       prompt,
		systemPrompt: systemPrompt,
		model:        model,
		outputKey:    outputKey,
		provider:     provider,
		ledger:       billing,
	}, nil
}

// ID returns the node ID.
func (n *LLMNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *LLMNode) Type() models.NodeType {
	return models.NodeTypeLLM
}

// Execute reserves the estimated cost, invokes the provider and reconciles
// the reservation against the realized usage. A balance failure gates the
// provider call; a provider failure refunds the reservation in full.
func (n *LLMNode) Execute(ctx context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	prompt := template.InterpolateWithContext(n.prompt, execCtx)
	systemPrompt := template.InterpolateWithContext(n.systemPrompt, execCtx)

	var txn *models.BillingTransaction

	if n.ledger != nil && execCtx.AccountID != "" {
		var err error

		txn, err = n.ledger.Reserve(ctx, execCtx.AccountID, execCtx.ExecutionID, n.model, systemPrompt+prompt)
		if err != nil {
			return nil, err
		}
	}

	resp, err := n.provider.Complete(ctx, systemPrompt, []reasoning.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		n.rollback(ctx, txn)

		return nil, protocol.NewCapabilityError(n.id, models.NodeTypeLLM, err)
	}

	var usage models.TokenUsage
	if resp.Usage != nil {
		usage = models.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}

	if txn != nil {
		err = n.ledger.Finalize(ctx, txn, usage, resp.Text)
		if err != nil {
			return nil, err
		}

		usage = txn.Usage
	}

	return &models.NodeResult{
		NodeID: n.id,
		Output: map[string]any{n.outputKey: resp.Text},
		Usage:  usage,
	}, nil
}

func (n *LLMNode) rollback(ctx context.Context, txn *models.BillingTransaction) {
	if txn == nil {
		return
	}

	// Refund with a detached context: the provider failure may have been a
	// cancellation, and the reservation must still be resolved.
	_ = n.ledger.Refund(context.WithoutCancel(ctx), txn)
}
