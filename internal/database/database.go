// Package database opens the configured store backend.
package database

import (
	"context"
	"fmt"

	"github.com/alphabot-ai/bloglist/internal/config"
	"github.com/alphabot-ai/bloglist/internal/store"
	"github.com/alphabot-ai/bloglist/internal/store/postgres"
	"github.com/alphabot-ai/bloglist/internal/store/sqlite"
)

// Connect opens the store named by cfg.Type and applies its migrations.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Type {
	case "sqlite":
		s, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}
