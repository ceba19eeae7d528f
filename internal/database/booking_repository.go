package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/loadlink/loadlink-backend/internal/models"
)

const bookingColumns = `id, trip_id, shipper_id, load_size, total_price, status,
	created_date, fulfilled_date, paid_date, notes, qr_generated,
	qr_generated_date, updated_at`

// bookingColumnsB is bookingColumns qualified for joins against trips
const bookingColumnsB = `b.id, b.trip_id, b.shipper_id, b.load_size, b.total_price, b.status,
	b.created_date, b.fulfilled_date, b.paid_date, b.notes, b.qr_generated,
	b.qr_generated_date, b.updated_at`

// CreateBooking inserts a booking
func (r *sqlRepository) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, trip_id, shipper_id, load_size, total_price, status, notes, qr_generated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_date, updated_at
	`

	err := r.q.QueryRowxContext(ctx, query,
		booking.ID,
		booking.TripID,
		booking.ShipperID,
		booking.LoadSize,
		booking.TotalPrice,
		booking.Status,
		booking.Notes,
		booking.QRGenerated,
	).Scan(&booking.CreatedDate, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetBookingByID retrieves a booking by ID
func (r *sqlRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := r.get(ctx, "booking", &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetBookingForUpdate retrieves a booking and locks its row until the
// transaction ends
func (r *sqlRepository) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	if err := r.get(ctx, "booking", &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListBookingsByShipper lists a shipper's bookings, newest first
func (r *sqlRepository) ListBookingsByShipper(ctx context.Context, shipperID uuid.UUID) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE shipper_id = $1 ORDER BY created_date DESC, id ASC`
	if err := r.selectAll(ctx, &bookings, query, shipperID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListBookingsByCarrier lists bookings on any of the carrier's trips,
// newest first
func (r *sqlRepository) ListBookingsByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `
		SELECT ` + bookingColumnsB + `
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE t.carrier_id = $1
		ORDER BY b.created_date DESC, b.id ASC
	`
	if err := r.selectAll(ctx, &bookings, query, carrierID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListBookingsByTrip lists a trip's bookings, optionally only one shipper's
func (r *sqlRepository) ListBookingsByTrip(ctx context.Context, tripID uuid.UUID, shipperID *uuid.UUID) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE trip_id = $1 AND ($2::uuid IS NULL OR shipper_id = $2)
		ORDER BY created_date DESC, id ASC
	`
	if err := r.selectAll(ctx, &bookings, query, tripID, shipperID); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// CountBookingsByTrip counts a trip's bookings in any of statuses
func (r *sqlRepository) CountBookingsByTrip(ctx context.Context, tripID uuid.UUID, statuses []models.BookingStatus) (int, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var count int
	query := `SELECT COUNT(*) FROM bookings WHERE trip_id = $1 AND status = ANY($2)`
	if err := r.get(ctx, "booking count", &count, query, tripID, pq.Array(values)); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateBooking writes the booking only while its stored status is still
// expected. A lost race surfaces as ErrIllegalTransition.
func (r *sqlRepository) UpdateBooking(ctx context.Context, booking *models.Booking, expected models.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $2, fulfilled_date = $3, paid_date = $4, notes = $5,
			qr_generated = $6, qr_generated_date = $7, updated_at = NOW()
		WHERE id = $1 AND status = $8
		RETURNING updated_at
	`

	rows, err := r.q.QueryxContext(ctx, query,
		booking.ID,
		booking.Status,
		booking.FulfilledDate,
		booking.PaidDate,
		booking.Notes,
		booking.QRGenerated,
		booking.QRGeneratedDate,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		return fmt.Errorf("%w: booking is no longer %s", models.ErrIllegalTransition, expected)
	}
	if err := rows.Scan(&booking.UpdatedAt); err != nil {
		return fmt.Errorf("failed to scan booking: %w", err)
	}
	return rows.Err()
}

// ListPaidBookingsBefore returns up to limit bookings paid before cutoff,
// oldest first
func (r *sqlRepository) ListPaidBookingsBefore(ctx context.Context, cutoff models.Date, limit int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'paid' AND paid_date < $1
		ORDER BY paid_date ASC, id ASC
		LIMIT $2
	`
	if err := r.selectAll(ctx, &bookings, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list paid bookings: %w", err)
	}
	return bookings, nil
}

// CreateStatusEvent appends a row to the booking status history
func (r *sqlRepository) CreateStatusEvent(ctx context.Context, event *models.BookingStatusEvent) error {
	query := `
		INSERT INTO booking_status_events (
			id, booking_id, from_status, to_status, actor_id, actor_role,
			ip_address, device_type, platform
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.q.QueryRowxContext(ctx, query,
		event.ID,
		event.BookingID,
		event.FromStatus,
		event.ToStatus,
		event.ActorID,
		event.ActorRole,
		event.IPAddress,
		event.DeviceType,
		event.Platform,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking status event: %w", err)
	}
	return nil
}

// ListStatusEvents returns a booking's history, oldest first
func (r *sqlRepository) ListStatusEvents(ctx context.Context, bookingID uuid.UUID) ([]models.BookingStatusEvent, error) {
	events := []models.BookingStatusEvent{}
	query := `
		SELECT id, booking_id, from_status, to_status, actor_id, actor_role,
			ip_address, device_type, platform, created_at
		FROM booking_status_events
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`
	if err := r.selectAll(ctx, &events, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list booking status events: %w", err)
	}
	return events, nil
}
