// Package file provides file-based persistence for workflows, executions and
// billing records. Every record is a JSON document under the root directory;
// writes are serialized with a process-wide lock.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

const dirPerm = 0o755

// Persistence implements the persistence.Persistence interface using the
// file system.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified
// root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Workflows returns all stored workflows sorted by creation time, newest
// first.
func (fp *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	dir := filepath.Join(fp.root, "workflows")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.Workflow{}, nil
		}

		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var workflow models.Workflow

		err := readJSON(filepath.Join(dir, entry.Name()), &workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow file %s: %w", entry.Name(), err)
		}

		workflows = append(workflows, &workflow)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// SaveWorkflow writes a workflow document, replacing any previous version.
func (fp *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := writeJSON(filepath.Join(fp.root, "workflows", workflow.ID+".json"), workflow)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// WorkflowByID loads a single workflow.
func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	var workflow models.Workflow

	err := readJSON(filepath.Join(fp.root, "workflows", id+".json"), &workflow)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return &workflow, nil
}

// DeleteWorkflow removes a workflow document together with its execution
// records and their node logs.
func (fp *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(filepath.Join(fp.root, "workflows", id+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("Delete", id, err)
	}

	return fp.deleteExecutions(id)
}

// deleteExecutions sweeps the execution documents of a deleted workflow.
// Caller holds the lock.
func (fp *Persistence) deleteExecutions(workflowID string) error {
	dir := filepath.Join(fp.root, "executions")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return persistence.NewWorkflowError("Delete", workflowID, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		var execution models.Execution

		err := readJSON(path, &execution)
		if err != nil {
			return persistence.NewWorkflowError("Delete", workflowID, err)
		}

		if execution.WorkflowID != workflowID {
			continue
		}

		err = os.Remove(path)
		if err != nil {
			return persistence.NewWorkflowError("Delete", workflowID, err)
		}

		err = os.Remove(filepath.Join(fp.root, "node_logs", execution.ID+".json"))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return persistence.NewWorkflowError("Delete", workflowID, err)
		}
	}

	return nil
}

// CreateExecution writes a new execution record.
func (fp *Persistence) CreateExecution(_ context.Context, execution *models.Execution) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := writeJSON(filepath.Join(fp.root, "executions", execution.ID+".json"), execution)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// UpdateExecution replaces an existing execution record.
func (fp *Persistence) UpdateExecution(_ context.Context, execution *models.Execution) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	path := filepath.Join(fp.root, "executions", execution.ID+".json")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return persistence.NewExecutionError("Update", execution.ID, persistence.ErrExecutionNotFound)
	}

	err := writeJSON(path, execution)
	if err != nil {
		return persistence.NewExecutionError("Update", execution.ID, err)
	}

	return nil
}

// ExecutionByID loads a single execution record.
func (fp *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	var execution models.Execution

	err := readJSON(filepath.Join(fp.root, "executions", id+".json"), &execution)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewExecutionError("ExecutionByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	return &execution, nil
}

// AppendNodeLog appends a per-node log entry to the execution's log document.
func (fp *Persistence) AppendNodeLog(_ context.Context, log *models.NodeLog) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	path := filepath.Join(fp.root, "node_logs", log.ExecutionID+".json")

	var logs []*models.NodeLog

	err := readJSON(path, &logs)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence.NewExecutionError("AppendNodeLog", log.ExecutionID, err)
	}

	logs = append(logs, log)

	err = writeJSON(path, logs)
	if err != nil {
		return persistence.NewExecutionError("AppendNodeLog", log.ExecutionID, err)
	}

	return nil
}

// NodeLogs returns the per-node log entries of an execution in append order.
func (fp *Persistence) NodeLogs(_ context.Context, executionID string) ([]*models.NodeLog, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	var logs []*models.NodeLog

	err := readJSON(filepath.Join(fp.root, "node_logs", executionID+".json"), &logs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.NodeLog{}, nil
		}

		return nil, persistence.NewExecutionError("NodeLogs", executionID, err)
	}

	return logs, nil
}

// SaveTransaction writes a billing transaction record, replacing any previous
// version of the same transaction.
func (fp *Persistence) SaveTransaction(_ context.Context, txn *models.BillingTransaction) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := writeJSON(filepath.Join(fp.root, "transactions", txn.ID+".json"), txn)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", txn.ID, err)
	}

	return nil
}

// TransactionsByExecution returns the billing transactions recorded for an
// execution, oldest first.
func (fp *Persistence) TransactionsByExecution(_ context.Context, executionID string) ([]*models.BillingTransaction, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	dir := filepath.Join(fp.root, "transactions")

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*models.BillingTransaction{}, nil
		}

		return nil, fmt.Errorf("failed to list transaction files: %w", err)
	}

	transactions := make([]*models.BillingTransaction, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		var txn models.BillingTransaction

		err := readJSON(filepath.Join(dir, entry.Name()), &txn)
		if err != nil {
			return nil, fmt.Errorf("failed to load transaction file %s: %w", entry.Name(), err)
		}

		if txn.ExecutionID == executionID {
			transactions = append(transactions, &txn)
		}
	}

	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.Before(transactions[j].CreatedAt)
	})

	return transactions, nil
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

func writeJSON(path string, value any) error {
	err := os.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
