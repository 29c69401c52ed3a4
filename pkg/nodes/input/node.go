// Package input provides the execution root node. It returns the initiating
// payload unchanged; the graph walk starts here.
package input

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
)

// InputNode is the identity node marking where execution begins.
type InputNode struct {
	id string
}

// NewInputNode creates a new input node.
func NewInputNode(id string) *InputNode {
	return &InputNode{id: id}
}

// ID returns the node ID.
func (n *InputNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *InputNode) Type() models.NodeType {
	return models.NodeTypeInput
}

// Execute passes the initiating payload through untouched.
func (n *InputNode) Execute(_ context.Context, _ *models.ExecutionContext) (*models.NodeResult, error) {
	return &models.NodeResult{NodeID: n.id}, nil
}
