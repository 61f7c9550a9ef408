package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/persistence/file"
	"github.com/adopshq/adflow/pkg/persistence/postgresql"
)

// NewPersistence builds a persistence layer from a database URL. The scheme
// selects the backend: postgres URLs get PostgreSQL, anything else is
// treated as a file-system root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
