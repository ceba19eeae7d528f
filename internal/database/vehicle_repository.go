package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
)

const vehicleColumns = `id, carrier_id, type, capacity, license_plate, rc_number, is_active`

// vehicleConflict maps the vehicle unique constraints to ErrConflict
func vehicleConflict(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case "vehicles_rc_number_key":
		return fmt.Errorf("%w: rc_number is already registered", models.ErrConflict)
	default:
		return fmt.Errorf("%w: license_plate is already registered", models.ErrConflict)
	}
}

// CreateVehicle inserts a vehicle
func (r *sqlRepository) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (` + vehicleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		vehicle.ID,
		vehicle.CarrierID,
		vehicle.Type,
		vehicle.Capacity,
		vehicle.LicensePlate,
		vehicle.RCNumber,
		vehicle.IsActive,
	)
	if err != nil {
		if conflict := vehicleConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	return nil
}

// GetVehicleByID retrieves a vehicle by ID
func (r *sqlRepository) GetVehicleByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`
	if err := r.get(ctx, "vehicle", &vehicle, query, id); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListVehiclesByCarrier lists a carrier's vehicles
func (r *sqlRepository) ListVehiclesByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Vehicle, error) {
	vehicles := []models.Vehicle{}
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE carrier_id = $1 ORDER BY license_plate`
	if err := r.selectAll(ctx, &vehicles, query, carrierID); err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

// UpdateVehicle overwrites the mutable vehicle fields
func (r *sqlRepository) UpdateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	query := `
		UPDATE vehicles
		SET type = $2, capacity = $3, license_plate = $4, rc_number = $5, is_active = $6
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query,
		vehicle.ID,
		vehicle.Type,
		vehicle.Capacity,
		vehicle.LicensePlate,
		vehicle.RCNumber,
		vehicle.IsActive,
	)
	if err != nil {
		if conflict := vehicleConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	return exactlyOne(result, "vehicle")
}

// DeleteVehicle removes a vehicle. Vehicles still referenced by any trip
// return ErrConflict.
func (r *sqlRepository) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		if _, ok := foreignKeyViolation(err); ok {
			return fmt.Errorf("%w: vehicle is referenced by trips", models.ErrConflict)
		}
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	return exactlyOne(result, "vehicle")
}

// CountActiveTripsByVehicle counts active trips using the vehicle
func (r *sqlRepository) CountActiveTripsByVehicle(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM trips WHERE vehicle_id = $1 AND status = 'active'`
	if err := r.get(ctx, "trip count", &count, query, vehicleID); err != nil {
		return 0, err
	}
	return count, nil
}
