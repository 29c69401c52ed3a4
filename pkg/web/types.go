// Package web provides the HTTP surface of the workflow engine: workflow
// CRUD, execution, execution inspection and the agent chat endpoint.
package web

import "github.com/loomworks/loom/pkg/models"

// CreateWorkflowRequest is the request body for creating a workflow. The full
// graph is supplied up front; it is validated before anything is stored.
type CreateWorkflowRequest struct {
	Name        string                  `json:"name"        validate:"required,min=3"`
	Description string                  `json:"description"`
	Owner       string                  `json:"owner"       validate:"required"`
	Nodes       []*models.WorkflowNode  `json:"nodes"       validate:"required,min=1"`
	Connections []*models.Connection    `json:"connections"`
	Settings    models.WorkflowSettings `json:"settings"`
}

// UpdateWorkflowRequest is the request body for updating a workflow. Scalar
// fields are optional to support partial updates; a nil Nodes or Connections
// slice keeps the stored graph.
type UpdateWorkflowRequest struct {
	Name        *string                  `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                  `json:"description,omitempty"`
	Nodes       []*models.WorkflowNode   `json:"nodes,omitempty"`
	Connections []*models.Connection     `json:"connections,omitempty"`
	Settings    *models.WorkflowSettings `json:"settings,omitempty"`
}

// ExecuteWorkflowRequest is the request body for starting an execution.
type ExecuteWorkflowRequest struct {
	SessionID string         `json:"session_id" validate:"required"`
	AccountID string         `json:"account_id"`
	Input     map[string]any `json:"input"`
}

// ExecutionDetailResponse bundles an execution record with its node visit log
// and billing transactions.
type ExecutionDetailResponse struct {
	Execution    *models.Execution            `json:"execution"`
	NodeLogs     []*models.NodeLog            `json:"node_logs"`
	Transactions []*models.BillingTransaction `json:"transactions"`
}

// ChatRequest is the request body for one agent conversation turn.
type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	AccountID string `json:"account_id"`
	Message   string `json:"message"    validate:"required"`
}

// ChatResponse is the agent's reply for one conversation turn.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Plan      string `json:"plan,omitempty"`
}

// NodeTypeResponse describes one catalog capability.
type NodeTypeResponse struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}
