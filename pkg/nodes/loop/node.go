// Package loop provides the iteration node. It re-routes the walk into a
// body branch while a bound condition holds, with a hard iteration cap so a
// wrong condition cannot run a workflow forever.
package loop

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/nodes/conditional"
	"github.com/loomworks/loom/pkg/protocol"
)

const defaultMaxIterations = 100

// LoopNode repeats a body branch while its condition binding is truthy.
type LoopNode struct {
	id            string
	condition     string
	body          string
	exit          string
	maxIterations int
}

// NewLoopNode creates a new loop node.
func NewLoopNode(id string, config map[string]any) (*LoopNode, error) {
	condition, ok := config["condition"].(string)
	if !ok || condition == "" {
		return nil, protocol.InvalidConfigError("condition")
	}

	body, ok := config["body"].(string)
	if !ok || body == "" {
		return nil, protocol.InvalidConfigError("body")
	}

	exit, _ := config["exit"].(string)

	maxIterations := defaultMaxIterations

	switch v := config["max_iterations"].(type) {
	case int:
		maxIterations = v
	case float64:
		maxIterations = int(v)
	}

	if maxIterations <= 0 {
		return nil, protocol.InvalidConfigError("max_iterations")
	}

	return &LoopNode{
		id:            id,
		condition:     condition,
		body:          body,
		exit:          exit,
		maxIterations: maxIterations,
	}, nil
}

// ID returns the node ID.
func (n *LoopNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *LoopNode) Type() models.NodeType {
	return models.NodeTypeLoop
}

// Execute routes into the body while the condition holds and the iteration
// cap is not reached, otherwise routes to the exit target. Without an exit
// target the loop terminates the branch. The iteration counter lives in the
// execution metadata, keyed per node, so nested loops do not interfere.
func (n *LoopNode) Execute(_ context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	iterations := n.iterations(execCtx)

	if iterations < n.maxIterations && conditional.Truthy(execCtx.Bindings[n.condition]) {
		n.setIterations(execCtx, iterations+1)

		return &models.NodeResult{
			NodeID: n.id,
			Output: map[string]any{"iteration": iterations + 1},
			Branch: n.body,
		}, nil
	}

	n.setIterations(execCtx, 0)

	if n.exit == "" {
		return &models.NodeResult{NodeID: n.id, Terminal: true}, nil
	}

	return &models.NodeResult{NodeID: n.id, Branch: n.exit}, nil
}

func (n *LoopNode) counterKey() string {
	return "loop:" + n.id
}

func (n *LoopNode) iterations(execCtx *models.ExecutionContext) int {
	if execCtx.Metadata == nil {
		return 0
	}

	count, _ := execCtx.Metadata[n.counterKey()].(int)

	return count
}

func (n *LoopNode) setIterations(execCtx *models.ExecutionContext, count int) {
	if execCtx.Metadata == nil {
		execCtx.Metadata = make(map[string]any)
	}

	execCtx.Metadata[n.counterKey()] = count
}
