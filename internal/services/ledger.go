package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Ledger owns trip available capacity. Every change to it goes through
// Reserve, Release or Finalize.
type Ledger struct {
	logger *logrus.Logger
}

// NewLedger creates a Ledger
func NewLedger(logger *logrus.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Reserve takes amount kg from the trip and returns the trip as it is
// after the reservation. Inside a Postgres transaction the trip row stays
// locked until commit.
func (l *Ledger) Reserve(ctx context.Context, repo database.TripRepository, tripID uuid.UUID, amount int) (*models.Trip, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: load_size must be greater than zero", models.ErrValidation)
	}

	ok, err := repo.ReserveCapacity(ctx, tripID, amount)
	if err != nil {
		return nil, err
	}

	trip, err := repo.GetTripByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if ok {
		return trip, nil
	}

	if !trip.IsActive() {
		return nil, fmt.Errorf("%w: trip is %s", models.ErrTripNotActive, trip.Status)
	}
	return nil, fmt.Errorf("%w: requested %d kg but only %d kg available",
		models.ErrCapacityExceeded, amount, trip.AvailableCapacity)
}

// Release gives amount kg back to the trip, clamped to its total. On a
// trip that is no longer active nothing changes.
func (l *Ledger) Release(ctx context.Context, repo database.TripRepository, tripID uuid.UUID, amount int) error {
	ok, err := repo.ReleaseCapacity(ctx, tripID, amount)
	if err != nil {
		return err
	}
	if !ok {
		l.logger.WithFields(logrus.Fields{
			"trip_id": tripID,
			"amount":  amount,
		}).Info("Capacity not released: trip is no longer active")
	}
	return nil
}

// Finalize freezes the ledger of a locked trip by moving it out of active
func (l *Ledger) Finalize(ctx context.Context, repo database.TripRepository, trip *models.Trip, status models.TripStatus) error {
	if !trip.IsActive() {
		return fmt.Errorf("%w: trip is already %s", models.ErrTripNotActive, trip.Status)
	}
	if status == models.TripStatusActive {
		return errors.New("finalize requires a non-active status")
	}
	trip.Status = status
	return repo.UpdateTrip(ctx, trip)
}

// Resize moves a locked trip onto a vehicle of capacity kg, keeping what
// is already reserved
func (l *Ledger) Resize(trip *models.Trip, capacity int) error {
	reserved := trip.Reserved()
	if capacity < reserved {
		return fmt.Errorf("%w: vehicle capacity %d kg is below the %d kg already booked",
			models.ErrValidation, capacity, reserved)
	}
	trip.TotalCapacity = capacity
	trip.AvailableCapacity = capacity - reserved
	return nil
}
