package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/loomworks/loom/pkg/agent"
	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/reasoning"
	"github.com/loomworks/loom/pkg/registry"
	"github.com/loomworks/loom/pkg/workflow"
)

type APIHandlers struct {
	repository  *workflow.Repository
	executor    *workflow.Executor
	persistence persistence.Persistence
	registry    *registry.Registry
	provider    reasoning.Provider
	billing     *ledger.Ledger
	validator   *validator.Validate
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*models.AgentState
}

func NewAPIHandlers(
	repository *workflow.Repository,
	executor *workflow.Executor,
	store persistence.Persistence,
	reg *registry.Registry,
	provider reasoning.Provider,
	billing *ledger.Ledger,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		repository:  repository,
		executor:    executor,
		persistence: store,
		registry:    reg,
		provider:    provider,
		billing:     billing,
		validator:   validate,
		logger:      logger.With("module", "web"),
		sessions:    make(map[string]*models.AgentState),
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	wf, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(wf)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	wf := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Nodes:       req.Nodes,
		Connections: req.Connections,
		Settings:    req.Settings,
	}

	created, err := h.repository.Create(c.Context(), wf)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.repository.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
	}

	if req.Connections != nil {
		existing.Connections = req.Connections
	}

	if req.Settings != nil {
		existing.Settings = *req.Settings
	}

	updated, err := h.repository.Update(c.Context(), id, existing)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.repository.Delete(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteWorkflow runs a stored workflow synchronously. A failed run is still
// a recorded execution; only errors before an execution exists map to problem
// responses.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ExecuteWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.executor.Execute(c.Context(), id, req.SessionID, req.AccountID, req.Input)
	if err != nil && execution == nil {
		return handleDomainError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.persistence.ExecutionByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	logs, err := h.persistence.NodeLogs(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	transactions, err := h.persistence.TransactionsByExecution(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(ExecutionDetailResponse{
		Execution:    execution,
		NodeLogs:     logs,
		Transactions: transactions,
	})
}

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	types := make([]NodeTypeResponse, 0)

	for _, nodeType := range h.registry.NodeTypes() {
		factory, ok := h.registry.Factory(nodeType)
		if !ok {
			continue
		}

		types = append(types, NodeTypeResponse{
			Type:        factory.ID(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return c.JSON(types)
}

// Chat runs one agent turn against the session's conversation state. Session
// state is held in memory; restarting the server starts conversations over.
func (h *APIHandlers) Chat(c fiber.Ctx) error {
	var req ChatRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	state := h.sessionState(req.SessionID, req.AccountID)
	coordinator := h.coordinator(state)

	reply, err := coordinator.Run(c.Context(), state, req.Message)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(ChatResponse{
		SessionID: state.SessionID,
		Reply:     reply,
		Plan:      state.Plan,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.repository.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) sessionState(sessionID, accountID string) *models.AgentState {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.sessions[sessionID]
	if !ok {
		state = &models.AgentState{SessionID: sessionID}
		h.sessions[sessionID] = state
	}

	state.AccountID = accountID

	return state
}

// coordinator builds an agent coordinator with tools bound to the session, so
// everything the agent triggers is billed and recorded against it.
func (h *APIHandlers) coordinator(state *models.AgentState) *agent.Coordinator {
	tools := []agent.Tool{
		agent.NewWorkflowTool(h.executor, state.SessionID, state.AccountID),
	}

	for _, nodeType := range h.registry.NodeTypes() {
		switch models.NodeType(nodeType) {
		case models.NodeTypeInput, models.NodeTypeOutput,
			models.NodeTypeConditional, models.NodeTypeLoop:
			// Control nodes only make sense inside a graph walk.
			continue
		}

		tools = append(tools, agent.NewNodeTool(h.registry, nodeType, state.SessionID, state.AccountID))
	}

	opts := []agent.CoordinatorOption{}
	if h.billing != nil {
		opts = append(opts, agent.WithLedger(h.billing))
	}

	return agent.NewCoordinator(h.provider, tools, h.logger, opts...)
}
