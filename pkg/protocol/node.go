// Package protocol defines the interfaces and contracts for pluggable nodes
// and the external capabilities the execution core consumes.
package protocol

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
)

// Node is one typed unit of work in a workflow graph.
type Node interface {
	// ID returns the node's identifier within its workflow
	ID() string

	// Type returns the node type tag
	Type() models.NodeType

	// Execute runs the node against the execution context. It returns the
	// produced bindings plus optional usage/cost, or an error that fails the
	// whole execution.
	Execute(ctx context.Context, execCtx *models.ExecutionContext) (*models.NodeResult, error)
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// ID returns the node type tag this factory builds
	ID() string

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}
