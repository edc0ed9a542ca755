package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// StateStore persists the crawl state document.
type StateStore interface {
	// Load returns the stored document, creating an empty one on first run.
	Load(ctx context.Context) (*types.Store, error)

	// Snapshot returns the stored document without creating or modifying it.
	Snapshot(ctx context.Context) (*types.Store, error)

	// Save replaces the stored document as a whole.
	Save(ctx context.Context, store *types.Store) error

	// Close releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New creates the state store selected by cfg.Type.
func New(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (StateStore, error) {
	switch cfg.Type {
	case "json":
		return NewJSONStore(cfg.Path, logger), nil
	case "mongodb":
		return NewMongoStore(ctx, &cfg.Mongo, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
