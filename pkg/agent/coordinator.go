// Package agent implements the plan/execute/coordinate control loop used for
// open-ended chat requests that are not bound to a fixed workflow graph. The
// reasoning provider drives tool selection; the loop structure and its
// termination guarantees live here.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/reasoning"
)

const (
	defaultMaxCycles    = 10
	defaultMaxToolCalls = 8
)

const plannerPrompt = `You are the planning step of an assistant that builds and runs media workflows.
Given the conversation so far, produce a short numbered plan for the next piece of work.
Available tools: %s.
Reply with the plan text only.`

const executorPrompt = `You are the execution step of an assistant that builds and runs media workflows.
Current plan:
%s
Carry out the next concrete step. Use the available tools when the step needs them, then summarize the outcome in plain text.`

const coordinatorPrompt = `You are the coordination step of an assistant. Given the plan and the latest result, decide what happens next.
Reply with a single JSON object and nothing else: {"decision": "continue"} to keep executing the current plan, {"decision": "replan"} to produce a new plan, or {"decision": "done"} when the user's request is fulfilled.`

// Tool is a callable capability exposed to the reasoning loop.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// decision is the structured coordinator verdict. Anything that does not
// parse into one of the three known values terminates the loop.
type decision struct {
	Decision string `json:"decision"`
}

// Coordinator drives the planner/executor/coordinator cycle over an agent
// state. All collaborators are injected; the coordinator holds no global
// clients.
type Coordinator struct {
	provider     reasoning.Provider
	billing      *ledger.Ledger
	tools        map[string]Tool
	maxCycles    int
	maxToolCalls int
	logger       *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLedger routes every reasoning call through the billing ledger.
func WithLedger(billing *ledger.Ledger) CoordinatorOption {
	return func(c *Coordinator) { c.billing = billing }
}

// WithMaxCycles overrides the plan/execute/coordinate cycle ceiling.
func WithMaxCycles(n int) CoordinatorOption {
	return func(c *Coordinator) { c.maxCycles = n }
}

// WithMaxToolCalls overrides the per-cycle tool call ceiling.
func WithMaxToolCalls(n int) CoordinatorOption {
	return func(c *Coordinator) { c.maxToolCalls = n }
}

// NewCoordinator creates a coordinator over the given provider and tools.
func NewCoordinator(provider reasoning.Provider, tools []Tool, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	coordinator := &Coordinator{
		provider:     provider,
		tools:        make(map[string]Tool, len(tools)),
		maxCycles:    defaultMaxCycles,
		maxToolCalls: defaultMaxToolCalls,
		logger:       logger.With("module", "agent"),
	}

	for _, tool := range tools {
		coordinator.tools[tool.Name()] = tool
	}

	for _, opt := range opts {
		opt(coordinator)
	}

	return coordinator
}

// Run drives the control loop for one user message and returns the final
// assistant reply. The loop always terminates: the cycle ceiling bounds it
// even when the coordinator verdict never says done.
func (c *Coordinator) Run(ctx context.Context, state *models.AgentState, userMessage string) (string, error) {
	state.Append("user", userMessage)

	if state.Context == nil {
		state.Context = make(map[string]any)
	}

	var result string

	for cycle := 0; cycle < c.maxCycles; cycle++ {
		if state.Plan == "" {
			err := c.plan(ctx, state)
			if err != nil {
				return "", err
			}
		}

		state.ActiveNode = models.AgentRoleExecutor

		var err error

		result, err = c.execute(ctx, state)
		if err != nil {
			return "", err
		}

		state.Append("assistant", result)
		state.Context["last_result"] = result

		state.ActiveNode = models.AgentRoleCoordinator

		verdict, err := c.coordinate(ctx, state, result)
		if err != nil {
			return "", err
		}

		switch verdict {
		case "continue":
		case "replan":
			state.Plan = ""
		default:
			return result, nil
		}
	}

	c.logger.WarnContext(ctx, "Agent cycle ceiling reached",
		"session_id", state.SessionID, "max_cycles", c.maxCycles)

	return result, nil
}

func (c *Coordinator) plan(ctx context.Context, state *models.AgentState) error {
	state.ActiveNode = models.AgentRolePlanner

	system := fmt.Sprintf(plannerPrompt, strings.Join(c.toolNames(), ", "))

	resp, err := c.complete(ctx, state, system, c.conversation(state), nil)
	if err != nil {
		return fmt.Errorf("planning failed: %w", err)
	}

	state.Plan = resp.Text

	return nil
}

// execute runs the tool-calling loop for one cycle: the model may call tools
// up to the per-cycle ceiling, then must produce a textual result.
func (c *Coordinator) execute(ctx context.Context, state *models.AgentState) (string, error) {
	system := fmt.Sprintf(executorPrompt, state.Plan)
	messages := c.conversation(state)

	for call := 0; call <= c.maxToolCalls; call++ {
		resp, err := c.complete(ctx, state, system, messages, c.toolDefinitions())
		if err != nil {
			return "", fmt.Errorf("execution step failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 || call == c.maxToolCalls {
			return resp.Text, nil
		}

		messages = append(messages, reasoning.Message{
			Role:      "assistant",
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		for _, toolCall := range resp.ToolCalls {
			messages = append(messages, reasoning.Message{
				Role:       "tool",
				Content:    c.callTool(ctx, toolCall),
				ToolCallID: toolCall.ID,
			})
		}
	}

	return "", nil
}

func (c *Coordinator) coordinate(ctx context.Context, state *models.AgentState, result string) (string, error) {
	messages := []reasoning.Message{{
		Role:    "user",
		Content: fmt.Sprintf("Plan:\n%s\n\nLatest result:\n%s", state.Plan, result),
	}}

	resp, err := c.complete(ctx, state, coordinatorPrompt, messages, nil)
	if err != nil {
		return "", fmt.Errorf("coordination failed: %w", err)
	}

	var verdict decision

	err = json.Unmarshal([]byte(strings.TrimSpace(resp.Text)), &verdict)
	if err != nil {
		// Ambiguous output terminates; never loop on a verdict that
		// could not be understood.
		c.logger.DebugContext(ctx, "Unparseable coordinator verdict, terminating",
			"session_id", state.SessionID, "verdict", resp.Text)

		return "done", nil
	}

	switch verdict.Decision {
	case "continue", "replan", "done":
		return verdict.Decision, nil
	default:
		return "done", nil
	}
}

// complete invokes the reasoning provider, routing the call through the
// billing ledger when the state carries an account.
func (c *Coordinator) complete(ctx context.Context, state *models.AgentState, system string, messages []reasoning.Message, tools []reasoning.ToolDefinition) (*reasoning.Response, error) {
	if c.billing == nil || state.AccountID == "" {
		return c.provider.Complete(ctx, system, messages, tools)
	}

	var inputText strings.Builder

	inputText.WriteString(system)

	for _, msg := range messages {
		inputText.WriteString(msg.Content)
	}

	txn, err := c.billing.Reserve(ctx, state.AccountID, state.SessionID, c.provider.Info().Model, inputText.String())
	if err != nil {
		return nil, err
	}

	resp, err := c.provider.Complete(ctx, system, messages, tools)
	if err != nil {
		_ = c.billing.Refund(context.WithoutCancel(ctx), txn)

		return nil, err
	}

	var usage models.TokenUsage
	if resp.Usage != nil {
		usage = models.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
	}

	err = c.billing.Finalize(ctx, txn, usage, resp.Text)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Coordinator) callTool(ctx context.Context, call reasoning.ToolCall) string {
	tool, ok := c.tools[call.Name]
	if !ok {
		return fmt.Sprintf("error: unknown tool '%s'", call.Name)
	}

	result, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		c.logger.WarnContext(ctx, "Tool call failed", "tool", call.Name, "error", err)

		return fmt.Sprintf("error: %v", err)
	}

	return result
}

func (c *Coordinator) conversation(state *models.AgentState) []reasoning.Message {
	messages := make([]reasoning.Message, 0, len(state.Messages))
	for _, msg := range state.Messages {
		messages = append(messages, reasoning.Message{Role: msg.Role, Content: msg.Content})
	}

	return messages
}

func (c *Coordinator) toolNames() []string {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (c *Coordinator) toolDefinitions() []reasoning.ToolDefinition {
	defs := make([]reasoning.ToolDefinition, 0, len(c.tools))
	for _, tool := range c.tools {
		defs = append(defs, reasoning.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}

	return defs
}
