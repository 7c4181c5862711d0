// Package cmd wires the shared infrastructure providers the binaries pick
// from flags: persistence backends and event bus channels.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/loopwork/flowstudio/pkg/persistence"
	"github.com/loopwork/flowstudio/pkg/persistence/file"
	"github.com/loopwork/flowstudio/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence backend from the database URL scheme:
// postgres:// connects to PostgreSQL, anything else falls back to the
// file store rooted at the URL path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	return parts[0]
}
