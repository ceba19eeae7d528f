package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
)

const tripColumns = `id, carrier_id, vehicle_id, origin, destination, departure_date,
	arrival_date, price_per_kg, available_capacity, total_capacity, status, description`

// CreateTrip inserts a trip
func (r *sqlRepository) CreateTrip(ctx context.Context, trip *models.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.CarrierID,
		trip.VehicleID,
		trip.Origin,
		trip.Destination,
		trip.DepartureDate,
		trip.ArrivalDate,
		trip.PricePerKg,
		trip.AvailableCapacity,
		trip.TotalCapacity,
		trip.Status,
		trip.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// GetTripByID retrieves a trip by ID
func (r *sqlRepository) GetTripByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	if err := r.get(ctx, "trip", &trip, query, id); err != nil {
		return nil, err
	}
	return &trip, nil
}

// GetTripForUpdate retrieves a trip and locks its row until the
// transaction ends
func (r *sqlRepository) GetTripForUpdate(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`
	if err := r.get(ctx, "trip", &trip, query, id); err != nil {
		return nil, err
	}
	return &trip, nil
}

// ListActiveTrips lists active trips matching the filter, soonest first
func (r *sqlRepository) ListActiveTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error) {
	conditions := []string{"status = 'active'"}
	args := []interface{}{}

	if origin := strings.TrimSpace(filter.Origin); origin != "" {
		args = append(args, "%"+origin+"%")
		conditions = append(conditions, fmt.Sprintf("origin ILIKE $%d", len(args)))
	}
	if destination := strings.TrimSpace(filter.Destination); destination != "" {
		args = append(args, "%"+destination+"%")
		conditions = append(conditions, fmt.Sprintf("destination ILIKE $%d", len(args)))
	}
	if filter.MinCapacity > 0 {
		args = append(args, filter.MinCapacity)
		conditions = append(conditions, fmt.Sprintf("available_capacity >= $%d", len(args)))
	}

	query := `SELECT ` + tripColumns + ` FROM trips WHERE ` +
		strings.Join(conditions, " AND ") +
		` ORDER BY departure_date ASC, id ASC`

	trips := []models.Trip{}
	if err := r.selectAll(ctx, &trips, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

// ListTripsByCarrier lists every trip posted by a carrier
func (r *sqlRepository) ListTripsByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Trip, error) {
	trips := []models.Trip{}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE carrier_id = $1 ORDER BY departure_date DESC, id ASC`
	if err := r.selectAll(ctx, &trips, query, carrierID); err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

// UpdateTrip overwrites the trip row. Callers must hold the row lock from
// GetTripForUpdate when capacity fields change.
func (r *sqlRepository) UpdateTrip(ctx context.Context, trip *models.Trip) error {
	query := `
		UPDATE trips
		SET vehicle_id = $2, origin = $3, destination = $4, departure_date = $5,
			arrival_date = $6, price_per_kg = $7, available_capacity = $8,
			total_capacity = $9, status = $10, description = $11
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.VehicleID,
		trip.Origin,
		trip.Destination,
		trip.DepartureDate,
		trip.ArrivalDate,
		trip.PricePerKg,
		trip.AvailableCapacity,
		trip.TotalCapacity,
		trip.Status,
		trip.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	return exactlyOne(result, "trip")
}

// DeleteTrip removes a trip and, by cascade, its bookings
func (r *sqlRepository) DeleteTrip(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	return exactlyOne(result, "trip")
}

// ReserveCapacity takes amount from an active trip in a single conditional
// statement, so concurrent reservations can never overdraw it
func (r *sqlRepository) ReserveCapacity(ctx context.Context, tripID uuid.UUID, amount int) (bool, error) {
	query := `
		UPDATE trips
		SET available_capacity = available_capacity - $2
		WHERE id = $1 AND status = 'active' AND available_capacity >= $2
	`

	result, err := r.q.ExecContext(ctx, query, tripID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to reserve capacity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ReleaseCapacity gives amount back to an active trip, never exceeding its
// total capacity
func (r *sqlRepository) ReleaseCapacity(ctx context.Context, tripID uuid.UUID, amount int) (bool, error) {
	query := `
		UPDATE trips
		SET available_capacity = LEAST(total_capacity, available_capacity + $2)
		WHERE id = $1 AND status = 'active'
	`

	result, err := r.q.ExecContext(ctx, query, tripID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to release capacity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
