// Package cmd provides common initialization functions for the loom binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/persistence/file"
	"github.com/loomworks/loom/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence layer from a database URL. The scheme
// selects the backend; anything unrecognized falls back to file storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseProvider(databaseURL) {
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create postgresql persistence: %w", err))
		}

		return store
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
