// Package imagegen provides the image generation node. It bills a flat
// per-call cost and stores the resulting asset reference at the configured
// output key.
package imagegen

import (
	"context"
	"errors"

	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/template"
)

const (
	defaultModel     = "default"
	defaultOutputKey = "image_url"
)

// ImageNode invokes an external image generation capability.
type ImageNode struct {
	id        string
	prompt    string
	model     string
	outputKey string
	provider  protocol.GenerationProvider
	ledger    *ledger.Ledger
}

// NewImageNode creates a new image generation node.
func NewImageNode(id string, config map[string]any, provider protocol.GenerationProvider, billing *ledger.Ledger) (*ImageNode, error) {
	if provider == nil {
		return nil, errors.New("image provider not configured")
	}

	prompt, ok := config["prompt"].(string)
	if !ok || prompt == "" {
		return nil, protocol.InvalidConfigError("prompt")
	}

	model, _ := config["model"].(string)
	if model == "" {
		model = defaultModel
	}

	outputKey, _ := config["output_key"].(string)
	if outputKey == "" {
		outputKey = defaultOutputKey
	}

	return &ImageNode{
		id:        id,
		prompt:    prompt,
		model:     model,
		outputKey: outputKey,
		provider:  provider,
		ledger:    billing,
	}, nil
}

// ID returns the node ID.
func (n *ImageNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *ImageNode) Type() models.NodeType {
	return models.NodeTypeImageGenerator
}

// Execute reserves the flat per-call cost, invokes the provider and settles
// the reservation. A provider failure refunds the reservation in full.
func (n *ImageNode) Execute(ctx context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	prompt := template.InterpolateWithContext(n.prompt, execCtx)

	var txn *models.BillingTransaction

	if n.ledger != nil && execCtx.AccountID != "" {
		var err error

		txn, err = n.ledger.ReserveFlat(ctx, execCtx.AccountID, execCtx.ExecutionID, n.model)
		if err != nil {
			return nil, err
		}
	}

	url, err := n.provider.Generate(ctx, n.model, prompt)
	if err != nil {
		if txn != nil {
			_ = n.ledger.Refund(context.WithoutCancel(ctx), txn)
		}

		return nil, protocol.NewCapabilityError(n.id, models.NodeTypeImageGenerator, err)
	}

	var cost int64

	if txn != nil {
		err = n.ledger.Finalize(ctx, txn, models.TokenUsage{}, "")
		if err != nil {
			return nil, err
		}

		cost = txn.ActualCharge
	}

	return &models.NodeResult{
		NodeID: n.id,
		Output: map[string]any{n.outputKey: url},
		Cost:   cost,
	}, nil
}
