package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loadlink/loadlink-backend/migrations"
	"github.com/pressly/goose/v3"
)

// NewMigrationProvider returns a goose provider over the embedded migrations
func NewMigrationProvider(db *sql.DB) (*goose.Provider, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// Migrate applies all pending migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	provider, err := NewMigrationProvider(db)
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
