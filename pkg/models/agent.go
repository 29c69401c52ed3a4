package models

// AgentRole names the active control node of the coordinator loop.
type AgentRole string

const (
	AgentRolePlanner     AgentRole = "planner"
	AgentRoleExecutor    AgentRole = "executor"
	AgentRoleCoordinator AgentRole = "coordinator"
)

// AgentMessage is one turn of the append-only conversation log.
type AgentMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// AgentState is the working state of one agentic run. It lives for one chat
// turn or one multi-step run; persisting it as chat history is the caller's
// concern.
type AgentState struct {
	SessionID  string         `json:"session_id"`
	AccountID  string         `json:"account_id"`
	Messages   []AgentMessage `json:"messages"`
	ActiveNode AgentRole      `json:"active_node"`
	Plan       string         `json:"plan,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// Append adds a message to the conversation log.
func (s *AgentState) Append(role, content string) {
	s.Messages = append(s.Messages, AgentMessage{Role: role, Content: content})
}
