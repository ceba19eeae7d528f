package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
)

const paymentColumns = `id, booking_id, from_user_id, to_user_id, amount, status,
	created_date, completed_date`

// CreatePayment inserts a payment. A second non-failed payment for the
// same booking returns ErrAlreadyPaid.
func (r *sqlRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.BookingID,
		payment.FromUserID,
		payment.ToUserID,
		payment.Amount,
		payment.Status,
		payment.CreatedDate,
		payment.CompletedDate,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return models.ErrAlreadyPaid
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentByID retrieves a payment by ID
func (r *sqlRepository) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err := r.get(ctx, "payment", &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetActivePaymentByBooking retrieves the non-failed payment of a booking
func (r *sqlRepository) GetActivePaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 AND status <> 'failed'`
	if err := r.get(ctx, "payment", &payment, query, bookingID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListPaymentsByUser lists payments the user sent or received, newest first
func (r *sqlRepository) ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	payments := []models.Payment{}
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_date DESC, id ASC
	`
	if err := r.selectAll(ctx, &payments, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
