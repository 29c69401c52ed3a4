package models

// ExecutionContext is the mutable working state threaded through a single
// execution. It lives only for the duration of one run and is never shared
// across executions.
type ExecutionContext struct {
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	SessionID   string         `json:"session_id"`
	AccountID   string         `json:"account_id"`
	Bindings    map[string]any `json:"bindings"`
	Usage       TokenUsage     `json:"usage"`
	Cost        int64          `json:"cost"` // accumulated flat costs, in billing credits
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewExecutionContext creates a context seeded with the initial input payload.
func NewExecutionContext(executionID, workflowID, sessionID, accountID string, input map[string]any) *ExecutionContext {
	bindings := make(map[string]any, len(input))
	for k, v := range input {
		bindings[k] = v
	}

	return &ExecutionContext{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		SessionID:   sessionID,
		AccountID:   accountID,
		Bindings:    bindings,
		Metadata:    make(map[string]any),
	}
}

// Bind stores a named value produced by a node, making it available to later
// nodes.
func (c *ExecutionContext) Bind(key string, value any) {
	if c.Bindings == nil {
		c.Bindings = make(map[string]any)
	}

	c.Bindings[key] = value
}

// Merge stores every entry of a node output into the bindings.
func (c *ExecutionContext) Merge(output map[string]any) {
	for k, v := range output {
		c.Bind(k, v)
	}
}
