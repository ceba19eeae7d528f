package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Statuses that block cancelling a trip
var openBookingStatuses = []models.BookingStatus{
	models.BookingStatusPending,
	models.BookingStatusAccepted,
	models.BookingStatusFulfilled,
	models.BookingStatusPaid,
}

// Statuses during which the agreed price must not move
var pricedBookingStatuses = []models.BookingStatus{
	models.BookingStatusPending,
	models.BookingStatusAccepted,
	models.BookingStatusFulfilled,
}

// Statuses that keep a trip from being deleted
var retainedBookingStatuses = []models.BookingStatus{
	models.BookingStatusPending,
	models.BookingStatusAccepted,
	models.BookingStatusFulfilled,
	models.BookingStatusPaid,
	models.BookingStatusCompleted,
}

// TripService manages carrier trips
type TripService struct {
	store   database.Store
	ledger  *Ledger
	emitter *events.Emitter
	logger  *logrus.Logger
}

// NewTripService creates a new trip service
func NewTripService(store database.Store, ledger *Ledger, emitter *events.Emitter, logger *logrus.Logger) *TripService {
	return &TripService{
		store:   store,
		ledger:  ledger,
		emitter: emitter,
		logger:  logger,
	}
}

// ownedActiveVehicle loads a vehicle the carrier owns and can post trips with
func ownedActiveVehicle(ctx context.Context, repo database.VehicleRepository, actor models.Actor, vehicleID uuid.UUID) (*models.Vehicle, error) {
	vehicle, err := repo.GetVehicleByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.CarrierID != actor.UserID {
		return nil, fmt.Errorf("%w: you do not own this vehicle", models.ErrForbidden)
	}
	if !vehicle.IsActive {
		return nil, fmt.Errorf("%w: vehicle is not active", models.ErrValidation)
	}
	return vehicle, nil
}

// CreateTrip posts a new trip sized to the vehicle's capacity
func (s *TripService) CreateTrip(ctx context.Context, actor models.Actor, req *models.CreateTripRequest) (*models.Trip, error) {
	if actor.Role != models.RoleCarrier {
		return nil, fmt.Errorf("%w: only carriers can post trips", models.ErrForbidden)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	vehicle, err := ownedActiveVehicle(ctx, s.store, actor, req.VehicleID)
	if err != nil {
		return nil, err
	}

	available := vehicle.Capacity
	if req.AvailableCapacity != nil {
		if *req.AvailableCapacity > vehicle.Capacity {
			return nil, fmt.Errorf("%w: available_capacity cannot exceed vehicle capacity of %d kg",
				models.ErrValidation, vehicle.Capacity)
		}
		available = *req.AvailableCapacity
	}

	trip := &models.Trip{
		ID:                uuid.New(),
		CarrierID:         actor.UserID,
		VehicleID:         vehicle.ID,
		Origin:            req.Origin,
		Destination:       req.Destination,
		DepartureDate:     req.DepartureDate,
		ArrivalDate:       req.ArrivalDate,
		PricePerKg:        models.RoundMoney(req.PricePerKg),
		AvailableCapacity: available,
		TotalCapacity:     vehicle.Capacity,
		Status:            models.TripStatusActive,
		Description:       req.Description,
	}
	if err := s.store.CreateTrip(ctx, trip); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"trip_id":    trip.ID,
		"carrier_id": trip.CarrierID,
		"capacity":   trip.TotalCapacity,
	}).Info("Trip created")

	return trip, nil
}

// GetTrip returns a trip by ID
func (s *TripService) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	return s.store.GetTripByID(ctx, id)
}

// ListActiveTrips returns bookable trips
func (s *TripService) ListActiveTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error) {
	return s.store.ListActiveTrips(ctx, filter)
}

// ListMyTrips returns every trip the carrier posted
func (s *TripService) ListMyTrips(ctx context.Context, actor models.Actor) ([]models.Trip, error) {
	if actor.Role != models.RoleCarrier {
		return nil, fmt.Errorf("%w: only carriers have trips", models.ErrForbidden)
	}
	return s.store.ListTripsByCarrier(ctx, actor.UserID)
}

// UpdateTrip applies a partial update. Capacity follows the vehicle and
// the ledger; status may only leave active.
func (s *TripService) UpdateTrip(ctx context.Context, actor models.Actor, id uuid.UUID, req *models.UpdateTripRequest) (*models.Trip, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		trip *models.Trip
		from models.TripStatus
	)
	err := s.store.WithTx(ctx, func(repo database.Repository) error {
		var err error
		trip, err = repo.GetTripForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if trip.CarrierID != actor.UserID {
			return fmt.Errorf("%w: you do not own this trip", models.ErrForbidden)
		}
		from = trip.Status
		if !trip.IsActive() {
			return fmt.Errorf("%w: trip is %s", models.ErrTripNotActive, trip.Status)
		}

		if err := s.applyTripEdits(ctx, repo, actor, trip, req); err != nil {
			return err
		}

		if req.Status != nil && *req.Status != trip.Status {
			if *req.Status == models.TripStatusCancelled {
				open, err := repo.CountBookingsByTrip(ctx, trip.ID, openBookingStatuses)
				if err != nil {
					return err
				}
				if open > 0 {
					return fmt.Errorf("%w: trip has %d open bookings", models.ErrConflict, open)
				}
			}
			return s.ledger.Finalize(ctx, repo, trip, *req.Status)
		}
		return repo.UpdateTrip(ctx, trip)
	})
	if err != nil {
		return nil, err
	}

	if trip.Status != from {
		s.logger.WithFields(logrus.Fields{
			"trip_id": trip.ID,
			"from":    from,
			"to":      trip.Status,
		}).Info("Trip status changed")
		s.emitter.Emit(ctx, events.Event{
			Type:       events.TripStatusChanged,
			TripID:     trip.ID,
			FromStatus: string(from),
			ToStatus:   string(trip.Status),
			ActorID:    &trip.CarrierID,
			ActorRole:  actor.Role,
			Capacity:   &events.CapacitySnapshot{Available: trip.AvailableCapacity, Total: trip.TotalCapacity},
		})
	}
	return trip, nil
}

func (s *TripService) applyTripEdits(ctx context.Context, repo database.Repository, actor models.Actor, trip *models.Trip, req *models.UpdateTripRequest) error {
	if req.VehicleID != nil && *req.VehicleID != trip.VehicleID {
		vehicle, err := ownedActiveVehicle(ctx, repo, actor, *req.VehicleID)
		if err != nil {
			return err
		}
		if err := s.ledger.Resize(trip, vehicle.Capacity); err != nil {
			return err
		}
		trip.VehicleID = vehicle.ID
	}

	if req.PricePerKg != nil {
		price := models.RoundMoney(*req.PricePerKg)
		if price != trip.PricePerKg {
			inFlight, err := repo.CountBookingsByTrip(ctx, trip.ID, pricedBookingStatuses)
			if err != nil {
				return err
			}
			if inFlight > 0 {
				return fmt.Errorf("%w: price cannot change while %d bookings are in progress", models.ErrConflict, inFlight)
			}
			trip.PricePerKg = price
		}
	}

	if req.Origin != nil {
		trip.Origin = strings.TrimSpace(*req.Origin)
	}
	if req.Destination != nil {
		trip.Destination = strings.TrimSpace(*req.Destination)
	}
	if req.DepartureDate != nil {
		trip.DepartureDate = *req.DepartureDate
	}
	if req.ArrivalDate != nil {
		trip.ArrivalDate = *req.ArrivalDate
	}
	if !trip.DepartureDate.Before(trip.ArrivalDate) {
		return fmt.Errorf("%w: arrival date must be after departure date", models.ErrValidation)
	}
	if req.Description != nil {
		trip.Description = req.Description
	}
	return nil
}

// DeleteTrip removes a trip that carries no bookings other than rejected
// or cancelled ones
func (s *TripService) DeleteTrip(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	return s.store.WithTx(ctx, func(repo database.Repository) error {
		trip, err := repo.GetTripForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if trip.CarrierID != actor.UserID {
			return fmt.Errorf("%w: you do not own this trip", models.ErrForbidden)
		}
		retained, err := repo.CountBookingsByTrip(ctx, trip.ID, retainedBookingStatuses)
		if err != nil {
			return err
		}
		if retained > 0 {
			return fmt.Errorf("%w: trip has %d bookings", models.ErrConflict, retained)
		}
		return repo.DeleteTrip(ctx, trip.ID)
	})
}
