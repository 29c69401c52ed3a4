package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/balance"
	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/mocks"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence/file"
	"github.com/loomworks/loom/pkg/registry"
	"github.com/loomworks/loom/pkg/reasoning"
)

type testEnv struct {
	executor    *Executor
	persistence *file.Persistence
	provider    *reasoning.ScriptedProvider
}

func newTestEnv(t *testing.T, responses ...*reasoning.Response) *testEnv {
	t.Helper()

	if len(responses) == 0 {
		responses = []*reasoning.Response{reasoning.TextResponse("a fine summary", 4, 3)}
	}

	provider := reasoning.NewScriptedProvider(responses...)

	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes(registry.Deps{Reasoning: provider})

	return &testEnv{
		executor:    NewExecutor(store, reg, slog.Default()),
		persistence: store,
		provider:    provider,
	}
}

func saveWorkflow(t *testing.T, env *testEnv, wf *models.Workflow) {
	t.Helper()

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	require.NoError(t, env.persistence.SaveWorkflow(context.Background(), wf))
}

func linearWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:    "wf-linear",
		Name:  "summarize text",
		Owner: "owner-1",
		Nodes: []*models.WorkflowNode{
			{ID: "in", Type: models.NodeTypeInput},
			{ID: "summarize", Type: models.NodeTypeLLM, Config: map[string]any{
				"prompt": "Summarize {{text}}",
			}},
			{ID: "out", Type: models.NodeTypeOutput},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNode: "in", TargetNode: "summarize"},
			{ID: "c2", SourceNode: "summarize", TargetNode: "out"},
		},
	}
}

func TestExecuteLinearWorkflow(t *testing.T) {
	env := newTestEnv(t)
	saveWorkflow(t, env, linearWorkflow())

	execution, err := env.executor.Execute(context.Background(), "wf-linear", "sess-1", "", map[string]any{
		"text": "the quarterly report",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "a fine summary", execution.Output["response"])
	assert.Equal(t, models.TokenUsage{InputTokens: 4, OutputTokens: 3}, execution.Usage)
	require.NotNil(t, execution.CompletedAt)

	require.Len(t, env.provider.Requests, 1)
	assert.Equal(t, "Summarize the quarterly report", env.provider.Requests[0].Content)

	stored, err := env.persistence.ExecutionByID(context.Background(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)

	logs, err := env.persistence.NodeLogs(context.Background(), execution.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "in", logs[0].NodeID)
	assert.Equal(t, "summarize", logs[1].NodeID)
	assert.Equal(t, "out", logs[2].NodeID)
}

func TestExecuteConditionalAbsentBindingTakesFalseBranch(t *testing.T) {
	env := newTestEnv(t)
	saveWorkflow(t, env, &models.Workflow{
		ID:    "wf-cond",
		Name:  "review gate",
		Owner: "owner-1",
		Nodes: []*models.WorkflowNode{
			{ID: "in", Type: models.NodeTypeInput},
			{ID: "gate", Type: models.NodeTypeConditional, Config: map[string]any{
				"condition":    "approved",
				"true_branch":  "publish",
				"false_branch": "review",
			}},
			{ID: "publish", Type: models.NodeTypeOutput},
			{ID: "review", Type: models.NodeTypeOutput},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNode: "in", TargetNode: "gate"},
		},
	})

	execution, err := env.executor.Execute(context.Background(), "wf-cond", "sess-1", "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "review", execution.Output["branch"])

	logs, err := env.persistence.NodeLogs(context.Background(), execution.ID)
	require.NoError(t, err)

	visited := make([]string, 0, len(logs))
	for _, log := range logs {
		visited = append(visited, log.NodeID)
	}

	assert.Contains(t, visited, "review")
	assert.NotContains(t, visited, "publish")
}

func TestExecuteLoopStopsAtCap(t *testing.T) {
	env := newTestEnv(t)
	saveWorkflow(t, env, &models.Workflow{
		ID:    "wf-loop",
		Name:  "refinement loop",
		Owner: "owner-1",
		Nodes: []*models.WorkflowNode{
			{ID: "in", Type: models.NodeTypeInput},
			{ID: "repeat", Type: models.NodeTypeLoop, Config: map[string]any{
				"condition":      "keep_going",
				"body":           "refine",
				"exit":           "done",
				"max_iterations": 3,
			}},
			{ID: "refine", Type: models.NodeTypeLLM, Config: map[string]any{
				"prompt": "Refine the draft",
			}},
			{ID: "done", Type: models.NodeTypeOutput},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNode: "in", TargetNode: "repeat"},
			{ID: "c2", SourceNode: "refine", TargetNode: "repeat"},
		},
	})

	// The condition never turns false on its own; the iteration cap must end
	// the loop.
	execution, err := env.executor.Execute(context.Background(), "wf-loop", "sess-1", "", map[string]any{
		"keep_going": true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Len(t, env.provider.Requests, 3)
}

func TestExecuteNoInputNode(t *testing.T) {
	env := newTestEnv(t)
	saveWorkflow(t, env, &models.Workflow{
		ID:    "wf-rootless",
		Name:  "rootless graph",
		Owner: "owner-1",
		Nodes: []*models.WorkflowNode{
			{ID: "out", Type: models.NodeTypeOutput},
		},
	})

	_, err := env.executor.Execute(context.Background(), "wf-rootless", "sess-1", "", nil)
	require.ErrorIs(t, err, ErrNoInputNode)
}

func TestExecuteNodeFailureMarksExecutionFailed(t *testing.T) {
	// A scripted provider with no responses fails every completion call.
	provider := reasoning.NewScriptedProvider()

	store := file.NewPersistence(t.TempDir())
	env := &testEnv{
		executor:    NewExecutor(store, registryWithProvider(provider), slog.Default()),
		persistence: store,
		provider:    provider,
	}

	saveWorkflow(t, env, linearWorkflow())

	execution, err := env.executor.Execute(context.Background(), "wf-linear", "sess-1", "", nil)
	require.Error(t, err)
	require.NotNil(t, execution)

	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.NotEmpty(t, execution.Error)

	stored, storeErr := env.persistence.ExecutionByID(context.Background(), execution.ID)
	require.NoError(t, storeErr)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
}

func TestExecuteStepLimit(t *testing.T) {
	env := newTestEnv(t)
	env.executor = NewExecutor(env.persistence, registryWithProvider(env.provider), slog.Default(), WithStepLimit(5))

	// Two nodes connected in a cycle with no terminal.
	saveWorkflow(t, env, &models.Workflow{
		ID:    "wf-cycle",
		Name:  "endless cycle",
		Owner: "owner-1",
		Nodes: []*models.WorkflowNode{
			{ID: "in", Type: models.NodeTypeInput},
			{ID: "gate", Type: models.NodeTypeConditional, Config: map[string]any{
				"condition":    "always",
				"true_branch":  "in",
				"false_branch": "in",
			}},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNode: "in", TargetNode: "gate"},
		},
	})

	_, err := env.executor.Execute(context.Background(), "wf-cycle", "sess-1", "", map[string]any{"always": true})
	require.ErrorIs(t, err, ErrStepLimitExceeded)
}

func TestExecuteWithBilling(t *testing.T) {
	provider := reasoning.NewScriptedProvider(reasoning.TextResponse("ok", 4, 3))

	store := file.NewPersistence(t.TempDir())
	balances := balance.NewMemoryStore()
	balances.SetBalance("acct-1", balance.Balance{Renewable: 4, Permanent: 10})

	costs := ledger.NewCostRegistry()
	costs.Register("scripted", ledger.CostPolicy{
		TokensPerCredit:  1,
		MinimumCharge:    1,
		OutputMultiplier: 1.5,
		SafetyFactor:     1.0,
	})

	billing := ledger.NewLedger(balances, costs, slog.Default(), ledger.WithRecorder(store))

	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes(registry.Deps{Reasoning: provider, Ledger: billing})

	executor := NewExecutor(store, reg, slog.Default())

	wf := linearWorkflow()
	wf.Nodes[1].Config["prompt"] = "0123456789abcdef"

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	require.NoError(t, store.SaveWorkflow(context.Background(), wf))

	execution, err := executor.Execute(context.Background(), "wf-linear", "sess-1", "acct-1", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	remaining, err := balances.Balance(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), remaining.Total())

	transactions, err := store.TransactionsByExecution(context.Background(), execution.ID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, models.TransactionStatusAdjusted, transactions[0].Status)
	assert.Equal(t, int64(7), transactions[0].ActualCharge)
}

func TestExecuteNodeLogWritesAreBestEffort(t *testing.T) {
	wf := linearWorkflow()
	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	store := &mocks.MockPersistence{}
	store.On("WorkflowByID", mock.Anything, "wf-linear").Return(wf, nil)
	store.On("CreateExecution", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendNodeLog", mock.Anything, mock.Anything).Return(errors.New("log store down"))
	store.On("UpdateExecution", mock.Anything, mock.Anything).Return(nil)

	provider := reasoning.NewScriptedProvider(reasoning.TextResponse("ok", 1, 1))
	executor := NewExecutor(store, registryWithProvider(provider), slog.Default())

	execution, err := executor.Execute(context.Background(), "wf-linear", "sess-1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
}

func TestExecuteAbortsWhenStatusWriteFails(t *testing.T) {
	wf := linearWorkflow()
	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	store := &mocks.MockPersistence{}
	store.On("WorkflowByID", mock.Anything, "wf-linear").Return(wf, nil)
	store.On("CreateExecution", mock.Anything, mock.Anything).Return(errors.New("write refused"))

	provider := reasoning.NewScriptedProvider(reasoning.TextResponse("ok", 1, 1))
	executor := NewExecutor(store, registryWithProvider(provider), slog.Default())

	_, err := executor.Execute(context.Background(), "wf-linear", "sess-1", "", nil)
	require.ErrorContains(t, err, "failed to create execution record")
	assert.Empty(t, provider.Requests)
}

// deadlineAwareStore refuses writes once the request context is done, the way
// a SQL store's ExecContext does.
type deadlineAwareStore struct {
	*file.Persistence
}

func (s *deadlineAwareStore) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.Persistence.UpdateExecution(ctx, execution)
}

func TestExecuteExpiredDeadlineStillRecordsFailedStatus(t *testing.T) {
	fileStore := file.NewPersistence(t.TempDir())
	store := &deadlineAwareStore{Persistence: fileStore}

	provider := reasoning.NewScriptedProvider(reasoning.TextResponse("ok", 1, 1))
	executor := NewExecutor(store, registryWithProvider(provider), slog.Default())

	wf := linearWorkflow()
	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	require.NoError(t, fileStore.SaveWorkflow(context.Background(), wf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	execution, err := executor.Execute(ctx, "wf-linear", "sess-1", "", nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, execution)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)

	// The terminal status reached the store even though the request context
	// was already dead.
	stored, storeErr := fileStore.ExecutionByID(context.Background(), execution.ID)
	require.NoError(t, storeErr)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
}

func registryWithProvider(provider reasoning.Provider) *registry.Registry {
	reg := registry.NewRegistry(slog.Default())
	reg.RegisterDefaultNodes(registry.Deps{Reasoning: provider})

	return reg
}
