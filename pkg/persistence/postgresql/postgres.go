// Package postgresql provides PostgreSQL persistence for workflows,
// executions and billing records.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending
// migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Workflows returns all workflows, newest first.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, description, owner, nodes, connections, settings, created_at, updated_at
		FROM workflows
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}

	return workflows, nil
}

// SaveWorkflow upserts a workflow.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	connections, err := json.Marshal(workflow.Connections)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	settings, err := json.Marshal(workflow.Settings)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, owner, nodes, connections, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			owner = EXCLUDED.owner,
			nodes = EXCLUDED.nodes,
			connections = EXCLUDED.connections,
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at`,
		workflow.ID, workflow.Name, workflow.Description, workflow.Owner,
		nodes, connections, settings, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// WorkflowByID returns a workflow by its ID.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, name, description, owner, nodes, connections, settings, created_at, updated_at
		FROM workflows
		WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return workflow, nil
}

// DeleteWorkflow removes a workflow row together with its execution rows and
// their node logs, in one transaction.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM node_logs
		WHERE execution_id IN (SELECT id FROM executions WHERE workflow_id = $1)`, id)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewWorkflowError("Delete", id, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM executions WHERE workflow_id = $1", id)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewWorkflowError("Delete", id, err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewWorkflowError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewWorkflowError("Delete", id, err)
	}

	if affected == 0 {
		_ = tx.Rollback()

		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// CreateExecution inserts a new execution row.
func (p *Persistence) CreateExecution(ctx context.Context, execution *models.Execution) error {
	input, err := json.Marshal(execution.Input)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	output, err := json.Marshal(execution.Output)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, session_id, status, input, output, error,
			input_tokens, output_tokens, cost, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		execution.ID, execution.WorkflowID, execution.SessionID, execution.Status,
		input, output, execution.Error,
		execution.Usage.InputTokens, execution.Usage.OutputTokens, execution.Cost,
		execution.StartedAt, execution.CompletedAt)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// UpdateExecution replaces the mutable columns of an execution row.
func (p *Persistence) UpdateExecution(ctx context.Context, execution *models.Execution) error {
	output, err := json.Marshal(execution.Output)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	result, err := p.db.ExecContext(ctx, `
		UPDATE executions SET
			status = $2, output = $3, error = $4,
			input_tokens = $5, output_tokens = $6, cost = $7, completed_at = $8
		WHERE id = $1`,
		execution.ID, execution.Status, output, execution.Error,
		execution.Usage.InputTokens, execution.Usage.OutputTokens, execution.Cost,
		execution.CompletedAt)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// ExecutionByID returns an execution by its ID.
func (p *Persistence) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, session_id, status, input, output, error,
			input_tokens, output_tokens, cost, started_at, completed_at
		FROM executions
		WHERE id = $1`, id)

	var (
		execution  models.Execution
		workflowID sql.NullString
		sessionID  sql.NullString
		input      []byte
		output     []byte
		errMsg     sql.NullString
		completed  sql.NullTime
	)

	err := row.Scan(&execution.ID, &workflowID, &sessionID, &execution.Status,
		&input, &output, &errMsg,
		&execution.Usage.InputTokens, &execution.Usage.OutputTokens, &execution.Cost,
		&execution.StartedAt, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	execution.WorkflowID = workflowID.String
	execution.SessionID = sessionID.String
	execution.Error = errMsg.String

	if completed.Valid {
		execution.CompletedAt = &completed.Time
	}

	err = unmarshalNullable(input, &execution.Input)
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	err = unmarshalNullable(output, &execution.Output)
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return &execution, nil
}

// AppendNodeLog inserts a per-node log row.
func (p *Persistence) AppendNodeLog(ctx context.Context, log *models.NodeLog) error {
	data, err := json.Marshal(log.Data)
	if err != nil {
		return persistence.NewExecutionError("AppendNodeLog", log.ExecutionID, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO node_logs (execution_id, node_id, status, data, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ExecutionID, log.NodeID, log.Status, data, log.Error, log.StartedAt, log.FinishedAt)
	if err != nil {
		return persistence.NewExecutionError("AppendNodeLog", log.ExecutionID, err)
	}

	return nil
}

// NodeLogs returns the per-node log rows of an execution in append order.
func (p *Persistence) NodeLogs(ctx context.Context, executionID string) ([]*models.NodeLog, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT execution_id, node_id, status, data, error, started_at, finished_at
		FROM node_logs
		WHERE execution_id = $1
		ORDER BY seq ASC`, executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("NodeLogs", executionID, err)
	}
	defer rows.Close()

	logs := make([]*models.NodeLog, 0)

	for rows.Next() {
		var (
			log    models.NodeLog
			data   []byte
			errMsg sql.NullString
		)

		err := rows.Scan(&log.ExecutionID, &log.NodeID, &log.Status, &data, &errMsg,
			&log.StartedAt, &log.FinishedAt)
		if err != nil {
			return nil, persistence.NewExecutionError("NodeLogs", executionID, err)
		}

		log.Error = errMsg.String

		err = unmarshalNullable(data, &log.Data)
		if err != nil {
			return nil, persistence.NewExecutionError("NodeLogs", executionID, err)
		}

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("NodeLogs", executionID, err)
	}

	return logs, nil
}

// SaveTransaction upserts a billing transaction row.
func (p *Persistence) SaveTransaction(ctx context.Context, txn *models.BillingTransaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO billing_transactions (id, account_id, execution_id, model,
			pre_charge, actual_charge, adjustment, estimated_tokens, estimated_input_tokens,
			input_tokens, output_tokens, status, created_at, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			actual_charge = EXCLUDED.actual_charge,
			adjustment = EXCLUDED.adjustment,
			input_tokens = EXCLUDED.input_tokens,
			output_tokens = EXCLUDED.output_tokens,
			status = EXCLUDED.status,
			finalized_at = EXCLUDED.finalized_at`,
		txn.ID, txn.AccountID, txn.ExecutionID, txn.Model,
		txn.PreCharge, txn.ActualCharge, txn.Adjustment, txn.EstimatedTokens, txn.EstimatedInputTokens,
		txn.Usage.InputTokens, txn.Usage.OutputTokens, txn.Status, txn.CreatedAt, txn.FinalizedAt)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
	}

	return nil
}

// TransactionsByExecution returns the billing transactions recorded for an
// execution, oldest first.
func (p *Persistence) TransactionsByExecution(ctx context.Context, executionID string) ([]*models.BillingTransaction, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, execution_id, model,
			pre_charge, actual_charge, adjustment, estimated_tokens, estimated_input_tokens,
			input_tokens, output_tokens, status, created_at, finalized_at
		FROM billing_transactions
		WHERE execution_id = $1
		ORDER BY created_at ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*models.BillingTransaction, 0)

	for rows.Next() {
		var (
			txn         models.BillingTransaction
			execID      sql.NullString
			finalizedAt sql.NullTime
		)

		err := rows.Scan(&txn.ID, &txn.AccountID, &execID, &txn.Model,
			&txn.PreCharge, &txn.ActualCharge, &txn.Adjustment, &txn.EstimatedTokens, &txn.EstimatedInputTokens,
			&txn.Usage.InputTokens, &txn.Usage.OutputTokens, &txn.Status, &txn.CreatedAt, &finalizedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		txn.ExecutionID = execID.String

		if finalizedAt.Valid {
			txn.FinalizedAt = &finalizedAt.Time
		}

		transactions = append(transactions, &txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		owner       sql.NullString
		nodes       []byte
		connections []byte
		settings    []byte
	)

	err := row.Scan(&workflow.ID, &workflow.Name, &workflow.Description, &owner,
		&nodes, &connections, &settings, &workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		return nil, err
	}

	workflow.Owner = owner.String

	err = unmarshalNullable(nodes, &workflow.Nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow nodes: %w", err)
	}

	err = unmarshalNullable(connections, &workflow.Connections)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow connections: %w", err)
	}

	err = unmarshalNullable(settings, &workflow.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow settings: %w", err)
	}

	return &workflow, nil
}

func unmarshalNullable(data []byte, target any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	return json.Unmarshal(data, target)
}
