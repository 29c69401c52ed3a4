package cmd

import (
	"fmt"
	"log/slog"

	"github.com/loomworks/loom/pkg/balance"
	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/ledger"
	"github.com/loomworks/loom/pkg/reasoning"
	"github.com/loomworks/loom/pkg/reasoning/anthropic"
	"github.com/loomworks/loom/pkg/reasoning/openai"
	"github.com/loomworks/loom/pkg/registry"
)

// NewReasoningProvider creates a reasoning provider by name. API credentials
// come from the vendor SDK's environment variables.
func NewReasoningProvider(provider string) reasoning.Provider {
	switch provider {
	case "anthropic", "":
		return anthropic.NewProvider()
	case "openai":
		return openai.NewProvider()
	default:
		panic("Unsupported reasoning provider: " + provider)
	}
}

// NewBalanceStore creates a balance store from a connection URL. An empty URL
// yields the in-memory store, which only suits single-process deployments.
func NewBalanceStore(redisURL string) balance.Store {
	if redisURL == "" {
		return balance.NewMemoryStore()
	}

	store, err := balance.NewRedisStore(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to create redis balance store: %w", err))
	}

	return store
}

// NewLedger builds the billing ledger over the given balance store, recording
// transactions through the persistence layer and publishing billing events
// when those collaborators are supplied.
func NewLedger(store balance.Store, recorder ledger.Recorder, bus eventbus.EventPublisher, logger *slog.Logger) *ledger.Ledger {
	costs := ledger.NewCostRegistry()

	var opts []ledger.Option
	if recorder != nil {
		opts = append(opts, ledger.WithRecorder(recorder))
	}

	if bus != nil {
		opts = append(opts, ledger.WithEventBus(bus))
	}

	return ledger.NewLedger(store, costs, logger, opts...)
}

// NewRegistry builds the node catalog with every built-in capability wired.
func NewRegistry(logger *slog.Logger, deps registry.Deps) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(deps)

	return reg
}
