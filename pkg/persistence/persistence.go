// Package persistence provides the data storage abstraction for workflows,
// executions and billing records.
package persistence

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	CreateExecution(ctx context.Context, execution *models.Execution) error
	UpdateExecution(ctx context.Context, execution *models.Execution) error
	ExecutionByID(ctx context.Context, id string) (*models.Execution, error)

	AppendNodeLog(ctx context.Context, log *models.NodeLog) error
	NodeLogs(ctx context.Context, executionID string) ([]*models.NodeLog, error)

	SaveTransaction(ctx context.Context, txn *models.BillingTransaction) error
	TransactionsByExecution(ctx context.Context, executionID string) ([]*models.BillingTransaction, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
