package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/loadlink/loadlink-backend/internal/models"
)

// PostgresStore implements Store on top of sqlx and lib/pq
type PostgresStore struct {
	*sqlRepository
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection pool
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		sqlRepository: &sqlRepository{q: db},
		db:            db,
	}
}

// WithTx runs fn inside a database transaction
func (s *PostgresStore) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlRepository{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping verifies the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB exposes the pool for migrations
func (s *PostgresStore) DB() *sqlx.DB {
	return s.db
}

// sqlRepository runs queries against either the pool or a transaction
type sqlRepository struct {
	q sqlx.ExtContext
}

// get scans one row into dest, mapping no rows to a NotFound error
func (r *sqlRepository) get(ctx context.Context, entity string, dest interface{}, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, r.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotFound(entity)
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", entity, err)
	}
	return nil
}

// selectAll scans all rows into dest
func (r *sqlRepository) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, r.q, dest, query, args...)
}

// exactlyOne maps a zero-row write to a NotFound error
func exactlyOne(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.NotFound(entity)
	}
	return nil
}

// uniqueViolation returns the constraint name when err is a Postgres
// unique_violation
func uniqueViolation(err error) (string, bool) {
	return pgViolation(err, pgerrcode.UniqueViolation)
}

// foreignKeyViolation returns the constraint name when err is a Postgres
// foreign_key_violation
func foreignKeyViolation(err error) (string, bool) {
	return pgViolation(err, pgerrcode.ForeignKeyViolation)
}

func pgViolation(err error, code string) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == code {
		return pqErr.Constraint, true
	}
	return "", false
}
