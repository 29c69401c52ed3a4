package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

func testWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:    id,
		Name:  "test workflow",
		Owner: "owner-1",
		Nodes: []*models.WorkflowNode{
			{ID: "in", Type: models.NodeTypeInput},
			{ID: "out", Type: models.NodeTypeOutput},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNode: "in", TargetNode: "out"},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, testWorkflow("wf-1")))

	loaded, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", loaded.ID)
	assert.Len(t, loaded.Nodes, 2)
	assert.Len(t, loaded.Connections, 1)

	workflows, err := p.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, workflows, 1)
}

func TestWorkflowNotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.WorkflowByID(context.Background(), "missing")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestDeleteWorkflow(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, testWorkflow("wf-1")))
	require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))

	_, err := p.WorkflowByID(ctx, "wf-1")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	err = p.DeleteWorkflow(ctx, "wf-1")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestDeleteWorkflowCascadesToExecutions(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, testWorkflow("wf-1")))
	require.NoError(t, p.SaveWorkflow(ctx, testWorkflow("wf-2")))

	require.NoError(t, p.CreateExecution(ctx, &models.Execution{
		ID:         "ex-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusCompleted,
		StartedAt:  time.Now().UTC(),
	}))
	require.NoError(t, p.AppendNodeLog(ctx, &models.NodeLog{
		ExecutionID: "ex-1",
		NodeID:      "in",
		Status:      models.NodeStatusSuccess,
	}))

	require.NoError(t, p.CreateExecution(ctx, &models.Execution{
		ID:         "ex-2",
		WorkflowID: "wf-2",
		Status:     models.ExecutionStatusCompleted,
		StartedAt:  time.Now().UTC(),
	}))

	require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))

	_, err := p.ExecutionByID(ctx, "ex-1")
	require.ErrorIs(t, err, persistence.ErrExecutionNotFound)

	logs, err := p.NodeLogs(ctx, "ex-1")
	require.NoError(t, err)
	assert.Empty(t, logs)

	// Executions of other workflows survive.
	_, err = p.ExecutionByID(ctx, "ex-2")
	require.NoError(t, err)
}

func TestExecutionLifecycle(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	execution := &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	require.NoError(t, p.CreateExecution(ctx, execution))

	execution.Status = models.ExecutionStatusCompleted
	execution.Output = map[string]any{"response": "done"}
	require.NoError(t, p.UpdateExecution(ctx, execution))

	loaded, err := p.ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, "done", loaded.Output["response"])
}

func TestUpdateMissingExecution(t *testing.T) {
	p := NewPersistence(t.TempDir())

	err := p.UpdateExecution(context.Background(), &models.Execution{ID: "ghost"})
	require.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestNodeLogsAppendOrder(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	for _, nodeID := range []string{"in", "llm", "out"} {
		require.NoError(t, p.AppendNodeLog(ctx, &models.NodeLog{
			ExecutionID: "exec-1",
			NodeID:      nodeID,
			Status:      models.NodeStatusSuccess,
		}))
	}

	logs, err := p.NodeLogs(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "in", logs[0].NodeID)
	assert.Equal(t, "out", logs[2].NodeID)
}

func TestTransactionsByExecution(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	first := &models.BillingTransaction{
		ID:          "txn-1",
		ExecutionID: "exec-1",
		PreCharge:   10,
		Status:      models.TransactionStatusPending,
		CreatedAt:   time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, p.SaveTransaction(ctx, first))

	require.NoError(t, p.SaveTransaction(ctx, &models.BillingTransaction{
		ID:          "txn-2",
		ExecutionID: "exec-2",
		Status:      models.TransactionStatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}))

	// Finalizing overwrites the pending record instead of duplicating it.
	first.Status = models.TransactionStatusAdjusted
	first.ActualCharge = 7
	require.NoError(t, p.SaveTransaction(ctx, first))

	transactions, err := p.TransactionsByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, models.TransactionStatusAdjusted, transactions[0].Status)
	assert.Equal(t, int64(7), transactions[0].ActualCharge)
}

func TestHealthCheck(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence(dir)
	require.NoError(t, p.HealthCheck(context.Background()))

	missing := NewPersistence(dir + "/does-not-exist")
	require.Error(t, missing.HealthCheck(context.Background()))
}
