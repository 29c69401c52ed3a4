// Package reasoning defines the unified completion contract consumed by the
// llm node and the agent coordinator, so downstream logic never branches per
// vendor.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ToolCall represents a function call request surfaced by a provider.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is one turn of a provider conversation.
type Message struct {
	Role       string     `json:"role"` // "user", "assistant" or "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool result messages
}

// Usage captures provider-reported token counters for one completion. A zero
// counter means the provider did not supply it.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is a completed (non-streaming) provider turn.
type Response struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Model    string `json:"model"`
	Provider string `json:"provider"` // "anthropic", "openai", "scripted", ...
}

// Provider is the minimal interface required to drive generation.
type Provider interface {
	Complete(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (*Response, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// ScriptedProvider is a lightweight in-memory Provider useful for tests. It
// replays a fixed sequence of responses and records every request it saw.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []*Response
	index     int

	Requests []Message // last message of each request, in call order
}

// NewScriptedProvider constructs a provider replaying the given responses in
// order. Once exhausted it keeps returning the last response.
func NewScriptedProvider(responses ...*Response) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Complete implements Provider.
func (p *ScriptedProvider) Complete(_ context.Context, _ string, messages []Message, _ []ToolDefinition) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(messages) > 0 {
		p.Requests = append(p.Requests, messages[len(messages)-1])
	}

	if len(p.responses) == 0 {
		return nil, fmt.Errorf("scripted provider has no responses")
	}

	resp := p.responses[p.index]
	if p.index < len(p.responses)-1 {
		p.index++
	}

	return resp, nil
}

// Info implements Provider.
func (p *ScriptedProvider) Info() Info {
	return Info{Model: "scripted", Provider: "scripted"}
}

// TextResponse builds a plain text response with usage counters, a shorthand
// for scripted tests.
func TextResponse(text string, inputTokens, outputTokens int64) *Response {
	return &Response{
		Text:  text,
		Usage: &Usage{InputTokens: inputTokens, OutputTokens: outputTokens},
	}
}
