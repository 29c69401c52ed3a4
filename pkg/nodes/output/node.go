// Package output provides the terminal marker node. It returns its input
// unchanged and signals the executor that the branch is complete.
package output

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
)

// OutputNode terminates a branch of the graph walk.
type OutputNode struct {
	id string
}

// NewOutputNode creates a new output node.
func NewOutputNode(id string) *OutputNode {
	return &OutputNode{id: id}
}

// ID returns the node ID.
func (n *OutputNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *OutputNode) Type() models.NodeType {
	return models.NodeTypeOutput
}

// Execute marks the branch complete without touching the bindings.
func (n *OutputNode) Execute(_ context.Context, _ *models.ExecutionContext) (*models.NodeResult, error) {
	return &models.NodeResult{NodeID: n.id, Terminal: true}, nil
}
