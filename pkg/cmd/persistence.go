package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tasklane/tasklane/pkg/persistence"
	"github.com/tasklane/tasklane/pkg/persistence/file"
	"github.com/tasklane/tasklane/pkg/persistence/postgresql"
)

// NewPersistence picks the persistence implementation from the database URL
// scheme: postgres:// selects PostgreSQL, anything else the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
