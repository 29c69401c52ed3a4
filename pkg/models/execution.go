package models

import "time"

// ExecutionStatus is the lifecycle state of one workflow execution.
// Transitions: running -> completed | failed. Terminal states are immutable.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Execution is one instantiation of running a workflow (or an ad-hoc agent
// turn) against a session.
type Execution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id,omitempty"`
	SessionID   string          `json:"session_id"`
	Status      ExecutionStatus `json:"status"`
	Input       map[string]any  `json:"input,omitempty"`
	Output      map[string]any  `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	Usage       TokenUsage      `json:"usage"`
	Cost        int64           `json:"cost"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// TokenUsage tallies provider-reported token counts for one execution or one
// billable call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates another usage sample.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns the combined token count.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}
