// Package workflow implements the graph walk: loading a stored workflow,
// visiting its nodes from the input root, merging node outputs into the
// execution bindings and recording the execution lifecycle.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/otelhelper"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/registry"
)

// defaultStepLimit bounds the number of node visits per execution. Loops
// carry their own iteration caps; this is the ceiling above all of them.
const defaultStepLimit = 1000

// Executor walks workflow graphs.
type Executor struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	stepLimit   int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithEventBus attaches a lifecycle event publisher. Publishing is
// best-effort and never fails an execution.
func WithEventBus(bus eventbus.EventPublisher) ExecutorOption {
	return func(e *Executor) { e.eventBus = bus }
}

// WithTracer attaches a tracer for per-execution and per-node spans.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = tracer }
}

// WithStepLimit overrides the node visit ceiling.
func WithStepLimit(limit int) ExecutorOption {
	return func(e *Executor) { e.stepLimit = limit }
}

// NewExecutor creates a workflow executor.
func NewExecutor(store persistence.Persistence, reg *registry.Registry, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	executor := &Executor{
		persistence: store,
		registry:    reg,
		tracer:      noop.NewTracerProvider().Tracer("workflow"),
		logger:      logger.With("module", "workflow"),
		stepLimit:   defaultStepLimit,
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs a stored workflow to completion. The returned execution
// carries the terminal status; a non-nil error accompanies a failed one.
// Lifecycle status writes must succeed, node-level log writes are
// best-effort.
func (e *Executor) Execute(ctx context.Context, workflowID, sessionID, accountID string, input map[string]any) (*models.Execution, error) {
	wf, err := e.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	root, err := inputNode(wf)
	if err != nil {
		return nil, err
	}

	execution := &models.Execution{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		SessionID:  sessionID,
		Status:     models.ExecutionStatusRunning,
		Input:      input,
		StartedAt:  time.Now().UTC(),
	}

	err = e.persistence.CreateExecution(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	if wf.Settings.MaxExecutionTime > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(wf.Settings.MaxExecutionTime)*time.Second)
		defer cancel()
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.SessionIDKey, sessionID),
	)
	defer span.End()

	e.publish(ctx, workflowID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, workflowID),
		ExecutionID: execution.ID,
		SessionID:   sessionID,
		Input:       input,
	})

	execCtx := models.NewExecutionContext(execution.ID, workflowID, sessionID, accountID, input)

	visited, walkErr := e.walk(ctx, wf, root, execCtx)

	execution.Usage = execCtx.Usage
	execution.Cost = execCtx.Cost
	now := time.Now().UTC()
	execution.CompletedAt = &now

	// The terminal status write must land even when the walk failed because
	// the execution deadline expired.
	persistCtx := context.WithoutCancel(ctx)

	if walkErr != nil {
		execution.Status = models.ExecutionStatusFailed
		execution.Error = walkErr.Error()

		otelhelper.SetError(span, walkErr)

		err = e.persistence.UpdateExecution(persistCtx, execution)
		if err != nil {
			return nil, fmt.Errorf("failed to record failed execution: %w", err)
		}

		e.publish(ctx, workflowID, events.ExecutionFailed{
			BaseEvent:    events.NewBaseEvent(events.ExecutionFailedEvent, workflowID),
			ExecutionID:  execution.ID,
			Error:        walkErr.Error(),
			NodesVisited: visited,
			DurationMs:   now.Sub(execution.StartedAt).Milliseconds(),
		})

		return execution, walkErr
	}

	execution.Status = models.ExecutionStatusCompleted
	execution.Output = execCtx.Bindings

	err = e.persistence.UpdateExecution(persistCtx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to record completed execution: %w", err)
	}

	e.publish(ctx, workflowID, events.ExecutionCompleted{
		BaseEvent:    events.NewBaseEvent(events.ExecutionCompletedEvent, workflowID),
		ExecutionID:  execution.ID,
		Output:       execution.Output,
		Usage:        execution.Usage,
		Cost:         execution.Cost,
		NodesVisited: visited,
		DurationMs:   now.Sub(execution.StartedAt).Milliseconds(),
	})

	e.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID, "workflow_id", workflowID,
		"nodes_visited", visited, "cost", execution.Cost)

	return execution, nil
}

// walk runs the graph from the root, depth-first. A node's Branch output
// overrides its outbound connections; Terminal ends the current branch and
// resumes any deferred sibling branches.
func (e *Executor) walk(ctx context.Context, wf *models.Workflow, root *models.WorkflowNode, execCtx *models.ExecutionContext) (int, error) {
	stack := []string{root.ID}
	visited := 0

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return visited, err
		}

		if visited >= e.stepLimit {
			return visited, fmt.Errorf("%w: %d node visits", ErrStepLimitExceeded, visited)
		}

		nodeID := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		wfNode := wf.NodeByID(nodeID)
		if wfNode == nil {
			return visited, fmt.Errorf("%w: '%s'", ErrUnknownNode, nodeID)
		}

		result, err := e.executeNode(ctx, wfNode, execCtx)
		visited++

		if err != nil {
			return visited, err
		}

		execCtx.Merge(result.Output)
		execCtx.Usage.Add(result.Usage)
		execCtx.Cost += result.Cost

		switch {
		case result.Terminal:
			// Branch complete, continue any deferred siblings.
		case result.Branch != "":
			stack = append(stack, result.Branch)
		default:
			targets := wf.OutgoingConnections(nodeID)
			for i := len(targets) - 1; i >= 0; i-- {
				stack = append(stack, targets[i])
			}
		}
	}

	return visited, nil
}

func (e *Executor) executeNode(ctx context.Context, wfNode *models.WorkflowNode, execCtx *models.ExecutionContext) (*models.NodeResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, wfNode.ID),
		attribute.String(otelhelper.NodeTypeKey, string(wfNode.Type)),
	)
	defer span.End()

	startedAt := time.Now().UTC()

	node, err := e.registry.CreateNode(ctx, string(wfNode.Type), wfNode.ID, wfNode.Config)
	if err != nil {
		e.recordNodeFailure(ctx, execCtx, wfNode, err, startedAt)
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create node '%s': %w", wfNode.ID, err)
	}

	result, err := node.Execute(ctx, execCtx)
	if err != nil {
		e.recordNodeFailure(ctx, execCtx, wfNode, err, startedAt)
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("node '%s' failed: %w", wfNode.ID, err)
	}

	finishedAt := time.Now().UTC()

	logErr := e.persistence.AppendNodeLog(ctx, &models.NodeLog{
		ExecutionID: execCtx.ExecutionID,
		NodeID:      wfNode.ID,
		Status:      models.NodeStatusSuccess,
		Data:        result.Output,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	})
	if logErr != nil {
		e.logger.WarnContext(ctx, "Failed to append node log",
			"execution_id", execCtx.ExecutionID, "node_id", wfNode.ID, "error", logErr)
	}

	e.publish(ctx, execCtx.WorkflowID, events.NodeFinished{
		BaseEvent:   events.NewBaseEvent(events.NodeFinishedEvent, execCtx.WorkflowID),
		ExecutionID: execCtx.ExecutionID,
		NodeID:      wfNode.ID,
		NodeType:    string(wfNode.Type),
		Output:      result.Output,
		DurationMs:  finishedAt.Sub(startedAt).Milliseconds(),
	})

	return result, nil
}

func (e *Executor) recordNodeFailure(ctx context.Context, execCtx *models.ExecutionContext, wfNode *models.WorkflowNode, nodeErr error, startedAt time.Time) {
	finishedAt := time.Now().UTC()

	logErr := e.persistence.AppendNodeLog(ctx, &models.NodeLog{
		ExecutionID: execCtx.ExecutionID,
		NodeID:      wfNode.ID,
		Status:      models.NodeStatusError,
		Error:       nodeErr.Error(),
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	})
	if logErr != nil {
		e.logger.WarnContext(ctx, "Failed to append node log",
			"execution_id", execCtx.ExecutionID, "node_id", wfNode.ID, "error", logErr)
	}

	e.publish(ctx, execCtx.WorkflowID, events.NodeFailed{
		BaseEvent:   events.NewBaseEvent(events.NodeFailedEvent, execCtx.WorkflowID),
		ExecutionID: execCtx.ExecutionID,
		NodeID:      wfNode.ID,
		NodeType:    string(wfNode.Type),
		Error:       nodeErr.Error(),
		DurationMs:  finishedAt.Sub(startedAt).Milliseconds(),
	})
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	err := e.eventBus.Publish(ctx, key, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func inputNode(wf *models.Workflow) (*models.WorkflowNode, error) {
	inputs := wf.InputNodes()

	switch len(inputs) {
	case 0:
		return nil, fmt.Errorf("%w: workflow %s", ErrNoInputNode, wf.ID)
	case 1:
		return inputs[0], nil
	default:
		return nil, fmt.Errorf("%w: workflow %s has %d", ErrMultipleInputNodes, wf.ID, len(inputs))
	}
}
