package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// VehicleService manages a carrier's fleet
type VehicleService struct {
	store  database.Store
	logger *logrus.Logger
}

// NewVehicleService creates a new vehicle service
func NewVehicleService(store database.Store, logger *logrus.Logger) *VehicleService {
	return &VehicleService{store: store, logger: logger}
}

func requireCarrier(actor models.Actor) error {
	if actor.Role != models.RoleCarrier {
		return fmt.Errorf("%w: only carriers manage vehicles", models.ErrForbidden)
	}
	return nil
}

// CreateVehicle registers a vehicle for the carrier
func (s *VehicleService) CreateVehicle(ctx context.Context, actor models.Actor, req *models.VehicleRequest) (*models.Vehicle, error) {
	if err := requireCarrier(actor); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	vehicle := &models.Vehicle{ID: uuid.New(), CarrierID: actor.UserID, IsActive: true}
	req.Apply(vehicle)
	if err := s.store.CreateVehicle(ctx, vehicle); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"vehicle_id": vehicle.ID,
		"carrier_id": vehicle.CarrierID,
	}).Info("Vehicle registered")
	return vehicle, nil
}

// ListVehicles returns the carrier's vehicles
func (s *VehicleService) ListVehicles(ctx context.Context, actor models.Actor) ([]models.Vehicle, error) {
	if err := requireCarrier(actor); err != nil {
		return nil, err
	}
	return s.store.ListVehiclesByCarrier(ctx, actor.UserID)
}

// GetVehicle returns one of the carrier's vehicles
func (s *VehicleService) GetVehicle(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Vehicle, error) {
	if err := requireCarrier(actor); err != nil {
		return nil, err
	}
	vehicle, err := s.store.GetVehicleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if vehicle.CarrierID != actor.UserID {
		return nil, fmt.Errorf("%w: you do not own this vehicle", models.ErrForbidden)
	}
	return vehicle, nil
}

// UpdateVehicle replaces a vehicle's details. Capacity and activity are
// frozen while active trips use the vehicle.
func (s *VehicleService) UpdateVehicle(ctx context.Context, actor models.Actor, id uuid.UUID, req *models.VehicleRequest) (*models.Vehicle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	vehicle, err := s.GetVehicle(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	deactivating := req.IsActive != nil && !*req.IsActive && vehicle.IsActive
	if req.Capacity != vehicle.Capacity || deactivating {
		active, err := s.store.CountActiveTripsByVehicle(ctx, vehicle.ID)
		if err != nil {
			return nil, err
		}
		if active > 0 {
			return nil, fmt.Errorf("%w: vehicle is used by %d active trips", models.ErrConflict, active)
		}
	}

	req.Apply(vehicle)
	if err := s.store.UpdateVehicle(ctx, vehicle); err != nil {
		return nil, err
	}
	return vehicle, nil
}

// DeleteVehicle removes a vehicle no trip refers to
func (s *VehicleService) DeleteVehicle(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	vehicle, err := s.GetVehicle(ctx, actor, id)
	if err != nil {
		return err
	}
	active, err := s.store.CountActiveTripsByVehicle(ctx, vehicle.ID)
	if err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("%w: vehicle is used by %d active trips", models.ErrConflict, active)
	}
	return s.store.DeleteVehicle(ctx, vehicle.ID)
}
