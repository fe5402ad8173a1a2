package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowsmith/pkg/persistence"
	"github.com/dukex/flowsmith/pkg/persistence/bolt"
	"github.com/dukex/flowsmith/pkg/persistence/file"
	"github.com/dukex/flowsmith/pkg/persistence/postgresql"
	"github.com/dukex/flowsmith/pkg/persistence/redis"
)

var ErrUnsupportedPersistence = errors.New("unsupported persistence provider")

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "redis", "bolt"}

// NewPersistence opens the backend selected by the scheme of databaseURL.
// A URL without a scheme is a directory for the file backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, location := parsePersistenceProvider(databaseURL)

	logger.DebugContext(ctx, "opening persistence", "provider", provider)

	var (
		p   persistence.Persistence
		err error
	)

	switch provider {
	case "file":
		return file.NewPersistence(location), nil
	case "bolt":
		p, err = bolt.NewPersistence(location)
	case "postgres", "postgresql":
		p, err = postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis":
		p, err = redis.NewPersistence(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)",
			ErrUnsupportedPersistence, provider, strings.Join(supportedPersistenceProviders, ", "))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s persistence: %w", provider, err)
	}

	return p, nil
}

func parsePersistenceProvider(databaseURL string) (provider, location string) {
	scheme, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file", databaseURL
	}

	return strings.ToLower(scheme), rest
}
