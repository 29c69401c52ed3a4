package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/registry"
	"github.com/loomworks/loom/pkg/workflow"
)

// WorkflowTool exposes stored-workflow execution to the reasoning loop.
type WorkflowTool struct {
	executor  *workflow.Executor
	sessionID string
	accountID string
}

// NewWorkflowTool creates a workflow execution tool bound to a session, so
// executions it triggers are billed and recorded like direct ones.
func NewWorkflowTool(executor *workflow.Executor, sessionID, accountID string) *WorkflowTool {
	return &WorkflowTool{executor: executor, sessionID: sessionID, accountID: accountID}
}

func (t *WorkflowTool) Name() string {
	return "execute_workflow"
}

func (t *WorkflowTool) Description() string {
	return "Runs a stored workflow by ID with the given input payload and returns its output bindings."
}

func (t *WorkflowTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workflow_id": map[string]any{
				"type":        "string",
				"description": "ID of the workflow to run.",
			},
			"input": map[string]any{
				"type":        "object",
				"description": "Initial input bindings.",
			},
		},
		"required": []string{"workflow_id"},
	}
}

func (t *WorkflowTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		WorkflowID string         `json:"workflow_id"`
		Input      map[string]any `json:"input"`
	}

	err := json.Unmarshal(args, &params)
	if err != nil {
		return "", fmt.Errorf("invalid execute_workflow arguments: %w", err)
	}

	execution, err := t.executor.Execute(ctx, params.WorkflowID, t.sessionID, t.accountID, params.Input)
	if err != nil {
		return "", err
	}

	output, err := json.Marshal(execution.Output)
	if err != nil {
		return "", fmt.Errorf("failed to encode workflow output: %w", err)
	}

	return string(output), nil
}

// NodeTool exposes a single catalog capability as an ad-hoc tool, letting the
// reasoning loop run one node without a stored workflow around it.
type NodeTool struct {
	registry  *registry.Registry
	nodeType  string
	sessionID string
	accountID string
}

// NewNodeTool creates an ad-hoc node execution tool for one node type.
func NewNodeTool(reg *registry.Registry, nodeType, sessionID, accountID string) *NodeTool {
	return &NodeTool{registry: reg, nodeType: nodeType, sessionID: sessionID, accountID: accountID}
}

func (t *NodeTool) Name() string {
	return "run_" + t.nodeType
}

func (t *NodeTool) Description() string {
	if factory, ok := t.registry.Factory(t.nodeType); ok {
		return factory.Description()
	}

	return "Runs a " + t.nodeType + " node with the given configuration."
}

func (t *NodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"config": map[string]any{
				"type":        "object",
				"description": "Node configuration.",
			},
			"bindings": map[string]any{
				"type":        "object",
				"description": "Input bindings visible to the node.",
			},
		},
		"required": []string{"config"},
	}
}

func (t *NodeTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Config   map[string]any `json:"config"`
		Bindings map[string]any `json:"bindings"`
	}

	err := json.Unmarshal(args, &params)
	if err != nil {
		return "", fmt.Errorf("invalid %s arguments: %w", t.Name(), err)
	}

	err = t.registry.ValidateNodeConfig(t.nodeType, params.Config)
	if err != nil {
		return "", err
	}

	node, err := t.registry.CreateNode(ctx, t.nodeType, "adhoc-"+t.nodeType, params.Config)
	if err != nil {
		return "", err
	}

	execCtx := models.NewExecutionContext("adhoc", "", t.sessionID, t.accountID, params.Bindings)

	result, err := node.Execute(ctx, execCtx)
	if err != nil {
		return "", err
	}

	output, err := json.Marshal(result.Output)
	if err != nil {
		return "", fmt.Errorf("failed to encode node output: %w", err)
	}

	return string(output), nil
}
