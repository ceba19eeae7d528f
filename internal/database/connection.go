package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/loadlink/loadlink-backend/internal/config"
)

// NewConnection opens and verifies a PostgreSQL connection pool
func NewConnection(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open builds the Store selected by cfg.Driver
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreDriverMemory:
		return NewMemoryStore(), nil
	case config.StoreDriverPostgres, "":
		db, err := NewConnection(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := Migrate(ctx, db.DB); err != nil {
				db.Close()
				return nil, err
			}
		}
		return NewPostgresStore(db), nil
	}
	return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
}
