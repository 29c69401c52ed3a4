// Package models defines the core domain models for node-based pipeline execution.
package models

import "time"

// WorkflowSettings control how a workflow is allowed to run.
type WorkflowSettings struct {
	MaxExecutionTime    int  `json:"max_execution_time"` // seconds, 0 means no ceiling
	AutoExecute         bool `json:"auto_execute"`
	RequireConfirmation bool `json:"require_confirmation"`
}

// Workflow represents a directed graph of typed processing nodes.
type Workflow struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required,min=3"`
	Description string           `json:"description"`
	Owner       string           `json:"owner"       validate:"required"`
	Nodes       []*WorkflowNode  `json:"nodes"`
	Connections []*Connection    `json:"connections"`
	Settings    WorkflowSettings `json:"settings"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NodeByID returns the node with the given ID, or nil when absent.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// OutgoingConnections returns the target node IDs connected from the given node,
// in declaration order.
func (w *Workflow) OutgoingConnections(nodeID string) []string {
	var targets []string

	for _, conn := range w.Connections {
		if conn.SourceNode == nodeID {
			targets = append(targets, conn.TargetNode)
		}
	}

	return targets
}

// InputNodes returns every node with the input type tag.
func (w *Workflow) InputNodes() []*WorkflowNode {
	var inputs []*WorkflowNode

	for _, node := range w.Nodes {
		if node.Type == NodeTypeInput {
			inputs = append(inputs, node)
		}
	}

	return inputs
}
