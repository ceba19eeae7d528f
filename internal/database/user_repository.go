package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
)

const userColumns = `id, name, email, role, phone, rating, review_count,
	joined_date, avatar, password_hash, created_at`

// CreateUser inserts a new user. A duplicate email returns ErrConflict.
func (r *sqlRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			id, name, email, role, phone, rating, review_count,
			joined_date, avatar, password_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.q.QueryRowxContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Role,
		user.Phone,
		user.Rating,
		user.ReviewCount,
		user.JoinedDate,
		user.Avatar,
		user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("%w: email is already registered", models.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by ID
func (r *sqlRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.get(ctx, "user", &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserForUpdate retrieves a user and locks the row for the rest of the
// transaction
func (r *sqlRepository) GetUserForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	if err := r.get(ctx, "user", &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email. The caller normalizes case.
func (r *sqlRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := r.get(ctx, "user", &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserRating stores a recomputed rating aggregate
func (r *sqlRepository) UpdateUserRating(ctx context.Context, id uuid.UUID, summary models.RatingSummary) error {
	query := `UPDATE users SET rating = $2, review_count = $3 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, summary.Average, summary.Count)
	if err != nil {
		return fmt.Errorf("failed to update user rating: %w", err)
	}
	return exactlyOne(result, "user")
}
