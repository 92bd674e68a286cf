package storage

import (
	"context"
	"fmt"

	"github.com/JamesPrial/liferpg/internal/config"
	"github.com/JamesPrial/liferpg/internal/engine"
)

// Open returns the store selected by cfg.Storage.Backend.
//
// Backends:
//   - "json": a single JSON document at cfg.Storage.JSONPath
//   - "sqlite": a SQLite database at cfg.Storage.SQLitePath
//   - "postgres": the PostgreSQL database at cfg.Storage.PostgresURL
func Open(ctx context.Context, cfg *config.Config) (engine.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendJSON, "":
		return NewJSONStore(cfg.Storage.JSONPath), nil

	case config.BackendSQLite:
		s, err := NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		return s, nil

	case config.BackendPostgres:
		s, err := NewPostgresStore(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %q. Expected 'json', 'sqlite' or 'postgres'", cfg.Storage.Backend)
	}
}
