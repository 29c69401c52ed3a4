// Package main provides the Loom API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/otelhelper"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/reasoning"
	"github.com/loomworks/loom/pkg/registry"
	"github.com/loomworks/loom/pkg/web"
	"github.com/loomworks/loom/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	provider    reasoning.Provider
	billing     *ledger.Ledger
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
	provider reasoning.Provider,
	billing *ledger.Ledger,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		eventBus:    eventBus,
		provider:    provider,
		billing:     billing,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App(ctx context.Context) *fiber.App {
	reg := registry.NewRegistry(a.logger)
	reg.RegisterDefaultNodes(registry.Deps{
		Reasoning: a.provider,
		Ledger:    a.billing,
	})

	executorOpts := []workflow.ExecutorOption{workflow.WithEventBus(a.eventBus)}

	tracer, err := otelhelper.NewTracer(ctx, "loom-api")
	if err != nil {
		a.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		executorOpts = append(executorOpts, workflow.WithTracer(tracer))
	}

	repository := workflow.NewRepository(a.persistence, reg)
	executor := workflow.NewExecutor(a.persistence, reg, a.logger, executorOpts...)

	handlers := web.NewAPIHandlers(
		repository,
		executor,
		a.persistence,
		reg,
		a.provider,
		a.billing,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Loom API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)

	app.Get("/executions/:id", handlers.GetExecution)
	app.Get("/node-types", handlers.GetNodeTypes)
	app.Post("/chat", handlers.Chat)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	app := a.App(ctx)

	return app.Listen(":" + strconv.Itoa(port))
}
