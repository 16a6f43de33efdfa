package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minerva-erp/osflow/pkg/persistence"
	"github.com/minerva-erp/osflow/pkg/persistence/file"
	"github.com/minerva-erp/osflow/pkg/persistence/postgresql"
	"github.com/minerva-erp/osflow/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "redis"}

// NewPersistence selects the storage backend from the scheme of databaseURL.
// A URL without a known scheme is treated as a directory for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.Info("Initializing persistence", "provider", provider)

	switch provider {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger.With("persistence", "postgresql"), databaseURL)
	case "redis":
		return redis.NewPersistence(ctx, logger.With("persistence", "redis"), databaseURL)
	default:
		if strings.TrimPrefix(databaseURL, "file://") == "" {
			return nil, fmt.Errorf("file persistence needs a directory, got %q", databaseURL)
		}

		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if len(parts) > 1 && provider == supported {
			return provider
		}
	}

	return "file"
}
