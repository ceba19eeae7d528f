package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
)

const reviewColumns = `id, booking_id, from_user_id, to_user_id, rating, comment, created_date`

// CreateReview inserts a review. A second review of the same booking by
// the same author returns ErrDuplicateReview.
func (r *sqlRepository) CreateReview(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		review.ID,
		review.BookingID,
		review.FromUserID,
		review.ToUserID,
		review.Rating,
		review.Comment,
		review.CreatedDate,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return models.ErrDuplicateReview
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// GetReviewByID retrieves a review by ID
func (r *sqlRepository) GetReviewByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`
	if err := r.get(ctx, "review", &review, query, id); err != nil {
		return nil, err
	}
	return &review, nil
}

// ReviewExists reports whether the author already reviewed the booking
func (r *sqlRepository) ReviewExists(ctx context.Context, bookingID, fromUserID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM reviews WHERE booking_id = $1 AND from_user_id = $2)`
	if err := r.get(ctx, "review", &exists, query, bookingID, fromUserID); err != nil {
		return false, err
	}
	return exists, nil
}

// ListReviewsReceived lists reviews about the user, newest first
func (r *sqlRepository) ListReviewsReceived(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	reviews := []models.Review{}
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE to_user_id = $1 ORDER BY created_date DESC, id ASC`
	if err := r.selectAll(ctx, &reviews, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// ListReviewsInvolving lists reviews the user wrote or received
func (r *sqlRepository) ListReviewsInvolving(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	reviews := []models.Review{}
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_date DESC, id ASC
	`
	if err := r.selectAll(ctx, &reviews, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// ListRatingsReceived returns every rating the user received
func (r *sqlRepository) ListRatingsReceived(ctx context.Context, userID uuid.UUID) ([]int, error) {
	ratings := []int{}
	if err := r.selectAll(ctx, &ratings, `SELECT rating FROM reviews WHERE to_user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return ratings, nil
}
