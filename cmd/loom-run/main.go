// Package main provides the loom-run command: execute one stored workflow
// from the command line and print the resulting execution record.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/loomworks/loom/pkg/cmd"
	"github.com/loomworks/loom/pkg/log"
	"github.com/loomworks/loom/pkg/registry"
	"github.com/loomworks/loom/pkg/workflow"
)

func main() {
	logger := log.WithModule("run")

	command := &cli.Command{
		Name:                  "loom-run",
		Usage:                 "Execute a stored workflow once",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "workflow-id",
				Aliases:  []string{"w"},
				Usage:    "ID of the workflow to execute",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "Session to record the execution under (generated when empty)",
			},
			&cli.StringFlag{
				Name:  "account-id",
				Usage: "Account to bill the execution against (unbilled when empty)",
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Initial input bindings as a JSON object",
				Value:   "{}",
			},
			&cli.StringFlag{
				Name:    "reasoning-provider",
				Usage:   "Reasoning provider (anthropic, openai)",
				Value:   "anthropic",
				Sources: cli.EnvVars("REASONING_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the balance store (in-memory when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			var input map[string]any

			err := json.Unmarshal([]byte(command.String("input")), &input)
			if err != nil {
				return fmt.Errorf("invalid --input JSON: %w", err)
			}

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				closeErr := store.Close(ctx)
				if closeErr != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", closeErr)
				}
			}()

			provider := cmd.NewReasoningProvider(command.String("reasoning-provider"))
			balances := cmd.NewBalanceStore(command.String("redis-url"))
			billing := cmd.NewLedger(balances, store, nil, logger)

			reg := registry.NewRegistry(logger)
			reg.RegisterDefaultNodes(registry.Deps{
				Reasoning: provider,
				Ledger:    billing,
			})

			sessionID := command.String("session-id")
			if sessionID == "" {
				sessionID = uuid.New().String()
			}

			executor := workflow.NewExecutor(store, reg, logger)

			execution, err := executor.Execute(ctx,
				command.String("workflow-id"),
				sessionID,
				command.String("account-id"),
				input,
			)
			if execution != nil {
				encoded, encodeErr := json.MarshalIndent(execution, "", "  ")
				if encodeErr == nil {
					fmt.Println(string(encoded))
				}
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("Execution failed", "error", err)
		os.Exit(1)
	}
}
