package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/balance"
	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/reasoning"
)

type echoTool struct {
	lastArgs json.RawMessage
	calls    int
}

func (e *echoTool) Name() string        { return "lookup_asset" }
func (e *echoTool) Description() string { return "Looks up an asset reference." }

func (e *echoTool) Parameters() map[string]any {
	return map[string]any{"type": "object"}
}

func (e *echoTool) Call(_ context.Context, args json.RawMessage) (string, error) {
	e.lastArgs = args
	e.calls++

	return `{"url":"https://assets.example/a.png"}`, nil
}

func verdict(d string) *reasoning.Response {
	return reasoning.TextResponse(`{"decision": "`+d+`"}`, 1, 1)
}

func newState() *models.AgentState {
	return &models.AgentState{SessionID: "sess-1"}
}

func TestRunSingleCycle(t *testing.T) {
	provider := reasoning.NewScriptedProvider(
		reasoning.TextResponse("1. answer the question", 2, 2),
		reasoning.TextResponse("here is your answer", 3, 3),
		verdict("done"),
	)

	coordinator := NewCoordinator(provider, nil, slog.Default())
	state := newState()

	result, err := coordinator.Run(context.Background(), state, "what can you do?")
	require.NoError(t, err)

	assert.Equal(t, "here is your answer", result)
	assert.Equal(t, "1. answer the question", state.Plan)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "user", state.Messages[0].Role)
	assert.Equal(t, "assistant", state.Messages[1].Role)
	assert.Len(t, provider.Requests, 3)
}

func TestRunReplanCycle(t *testing.T) {
	provider := reasoning.NewScriptedProvider(
		reasoning.TextResponse("first plan", 1, 1),
		reasoning.TextResponse("partial result", 1, 1),
		verdict("replan"),
		reasoning.TextResponse("second plan", 1, 1),
		reasoning.TextResponse("final result", 1, 1),
		verdict("done"),
	)

	coordinator := NewCoordinator(provider, nil, slog.Default())
	state := newState()

	result, err := coordinator.Run(context.Background(), state, "make me a clip")
	require.NoError(t, err)

	assert.Equal(t, "final result", result)
	assert.Equal(t, "second plan", state.Plan)
	assert.Len(t, provider.Requests, 6)
}

func TestRunExecutorCallsTools(t *testing.T) {
	tool := &echoTool{}

	provider := reasoning.NewScriptedProvider(
		reasoning.TextResponse("1. look up the asset", 1, 1),
		&reasoning.Response{
			ToolCalls: []reasoning.ToolCall{{
				ID:        "call-1",
				Name:      "lookup_asset",
				Arguments: json.RawMessage(`{"name":"hero image"}`),
			}},
			Usage: &reasoning.Usage{InputTokens: 1, OutputTokens: 1},
		},
		reasoning.TextResponse("found it", 1, 1),
		verdict("done"),
	)

	coordinator := NewCoordinator(provider, []Tool{tool}, slog.Default())
	state := newState()

	result, err := coordinator.Run(context.Background(), state, "find the hero image")
	require.NoError(t, err)

	assert.Equal(t, "found it", result)
	assert.Equal(t, 1, tool.calls)
	assert.JSONEq(t, `{"name":"hero image"}`, string(tool.lastArgs))

	// The follow-up request after the tool call carries the tool result.
	require.Len(t, provider.Requests, 4)
	assert.Equal(t, "tool", provider.Requests[2].Role)
	assert.Equal(t, "call-1", provider.Requests[2].ToolCallID)
}

func TestRunAmbiguousVerdictTerminates(t *testing.T) {
	provider := reasoning.NewScriptedProvider(
		reasoning.TextResponse("a plan", 1, 1),
		reasoning.TextResponse("a result", 1, 1),
		reasoning.TextResponse("I think we should probably keep going", 1, 1),
	)

	coordinator := NewCoordinator(provider, nil, slog.Default())
	state := newState()

	result, err := coordinator.Run(context.Background(), state, "do the thing")
	require.NoError(t, err)
	assert.Equal(t, "a result", result)
}

func TestRunCycleCeiling(t *testing.T) {
	// The replayed verdict is always continue; the ceiling must end the run.
	provider := reasoning.NewScriptedProvider(
		reasoning.TextResponse("a plan", 1, 1),
		reasoning.TextResponse("a result", 1, 1),
		verdict("continue"),
	)

	coordinator := NewCoordinator(provider, nil, slog.Default(), WithMaxCycles(3))
	state := newState()

	_, err := coordinator.Run(context.Background(), state, "loop forever")
	require.NoError(t, err)
}

func TestRunBillsReasoningCalls(t *testing.T) {
	store := balance.NewMemoryStore()
	store.SetBalance("acct-1", balance.Balance{Renewable: 1000, Permanent: 0})

	costs := ledger.NewCostRegistry()
	costs.Register("scripted", ledger.CostPolicy{
		TokensPerCredit:  1,
		MinimumCharge:    1,
		OutputMultiplier: 1.0,
		SafetyFactor:     1.0,
	})

	billing := ledger.NewLedger(store, costs, slog.Default())

	provider := reasoning.NewScriptedProvider(
		reasoning.TextResponse("a plan", 2, 2),
		reasoning.TextResponse("a result", 2, 2),
		verdict("done"),
	)

	coordinator := NewCoordinator(provider, nil, slog.Default(), WithLedger(billing))

	state := newState()
	state.AccountID = "acct-1"

	_, err := coordinator.Run(context.Background(), state, "bill me")
	require.NoError(t, err)

	remaining, err := store.Balance(context.Background(), "acct-1")
	require.NoError(t, err)

	// Three reasoning calls, four tokens each, reconciled to actual cost.
	assert.Equal(t, int64(1000-12), remaining.Total())
}

func TestRunPropagatesInsufficientBalance(t *testing.T) {
	store := balance.NewMemoryStore()

	billing := ledger.NewLedger(store, nil, slog.Default())

	provider := reasoning.NewScriptedProvider(reasoning.TextResponse("a plan", 1, 1))
	coordinator := NewCoordinator(provider, nil, slog.Default(), WithLedger(billing))

	state := newState()
	state.AccountID = "acct-broke"

	_, err := coordinator.Run(context.Background(), state, "try anyway")
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Empty(t, provider.Requests)
}
