package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// sweepBatchSize bounds how many bookings one sweep completes
const sweepBatchSize = 100

// BookingService runs the booking state machine
type BookingService struct {
	store   database.Store
	ledger  *Ledger
	emitter *events.Emitter
	logger  *logrus.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(store database.Store, ledger *Ledger, emitter *events.Emitter, logger *logrus.Logger) *BookingService {
	return &BookingService{
		store:   store,
		ledger:  ledger,
		emitter: emitter,
		logger:  logger,
	}
}

// CreateBooking reserves capacity on a trip and records a pending booking
func (s *BookingService) CreateBooking(ctx context.Context, actor models.Actor, req *models.CreateBookingRequest) (*models.Booking, error) {
	if actor.Role != models.RoleShipper {
		return nil, fmt.Errorf("%w: only shippers can book capacity", models.ErrForbidden)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		booking *models.Booking
		trip    *models.Trip
	)
	err := s.store.WithTx(ctx, func(repo database.Repository) error {
		var err error
		trip, err = s.ledger.Reserve(ctx, repo, req.TripID, req.LoadSize)
		if err != nil {
			return err
		}

		booking = &models.Booking{
			ID:         uuid.New(),
			TripID:     trip.ID,
			ShipperID:  actor.UserID,
			LoadSize:   req.LoadSize,
			TotalPrice: trip.PriceFor(req.LoadSize),
			Status:     models.BookingStatusPending,
			Notes:      req.Notes,
		}
		if err := repo.CreateBooking(ctx, booking); err != nil {
			return err
		}
		return recordStatusEvent(ctx, repo, booking.ID, nil, booking.Status, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"trip_id":    trip.ID,
		"load_size":  booking.LoadSize,
		"available":  trip.AvailableCapacity,
	}).Info("Booking created")

	s.emitter.Emit(ctx, events.Event{
		Type:      events.BookingCreated,
		BookingID: &booking.ID,
		TripID:    trip.ID,
		ToStatus:  string(booking.Status),
		ActorID:   &booking.ShipperID,
		ActorRole: actor.Role,
		Capacity:  &events.CapacitySnapshot{Available: trip.AvailableCapacity, Total: trip.TotalCapacity},
	})

	return booking, nil
}

// loadForParty loads a booking and its trip and checks that the actor is
// one of the two parties
func loadForParty(ctx context.Context, repo database.Repository, actor models.Actor, bookingID uuid.UUID, lock bool) (*models.Booking, *models.Trip, error) {
	var (
		booking *models.Booking
		err     error
	)
	if lock {
		booking, err = repo.GetBookingForUpdate(ctx, bookingID)
	} else {
		booking, err = repo.GetBookingByID(ctx, bookingID)
	}
	if err != nil {
		return nil, nil, err
	}

	trip, err := repo.GetTripByID(ctx, booking.TripID)
	if err != nil {
		return nil, nil, err
	}

	if actor.UserID != booking.ShipperID && actor.UserID != trip.CarrierID {
		return nil, nil, fmt.Errorf("%w: you are not a party to this booking", models.ErrForbidden)
	}
	return booking, trip, nil
}

// GetBooking returns a booking to either of its parties
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Booking, error) {
	booking, _, err := loadForParty(ctx, s.store, actor, id, false)
	return booking, err
}

// ListBookings returns the shipper's own bookings or the bookings on the
// carrier's trips
func (s *BookingService) ListBookings(ctx context.Context, actor models.Actor) ([]models.Booking, error) {
	switch actor.Role {
	case models.RoleShipper:
		return s.store.ListBookingsByShipper(ctx, actor.UserID)
	case models.RoleCarrier:
		return s.store.ListBookingsByCarrier(ctx, actor.UserID)
	}
	return nil, fmt.Errorf("%w: unknown role", models.ErrForbidden)
}

// ListTripBookings returns every booking of the trip to its carrier, and
// only their own bookings to a shipper
func (s *BookingService) ListTripBookings(ctx context.Context, actor models.Actor, tripID uuid.UUID) ([]models.Booking, error) {
	trip, err := s.store.GetTripByID(ctx, tripID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleCarrier:
		if trip.CarrierID != actor.UserID {
			return nil, fmt.Errorf("%w: you do not own this trip", models.ErrForbidden)
		}
		return s.store.ListBookingsByTrip(ctx, tripID, nil)
	case models.RoleShipper:
		shipperID := actor.UserID
		return s.store.ListBookingsByTrip(ctx, tripID, &shipperID)
	}
	return nil, fmt.Errorf("%w: unknown role", models.ErrForbidden)
}

// History returns the status events of a booking, oldest first
func (s *BookingService) History(ctx context.Context, actor models.Actor, id uuid.UUID) ([]models.BookingStatusEvent, error) {
	if _, _, err := loadForParty(ctx, s.store, actor, id, false); err != nil {
		return nil, err
	}
	return s.store.ListStatusEvents(ctx, id)
}

// UpdateBooking applies a status transition and/or plain edits
func (s *BookingService) UpdateBooking(ctx context.Context, actor models.Actor, id uuid.UUID, req *models.UpdateBookingRequest) (*models.Booking, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		booking *models.Booking
		trip    *models.Trip
		from    models.BookingStatus
	)
	err := s.store.WithTx(ctx, func(repo database.Repository) error {
		var err error
		booking, trip, err = loadForParty(ctx, repo, actor, id, true)
		if err != nil {
			return err
		}
		from = booking.Status

		if req.Status != nil {
			if err := s.transition(ctx, repo, booking, trip, *req.Status, actor, req.FulfilledDate); err != nil {
				return err
			}
		}
		if req.Notes != nil {
			if err := editNotes(booking, from, actor, *req.Notes); err != nil {
				return err
			}
		}
		if req.QRGenerated != nil {
			if err := markQRGenerated(booking, trip, actor); err != nil {
				return err
			}
		}

		if err := repo.UpdateBooking(ctx, booking, from); err != nil {
			return err
		}
		if booking.Status != from {
			return recordStatusEvent(ctx, repo, booking.ID, &from, booking.Status, actor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if booking.Status != from {
		s.logTransition(booking, from, actor)
		s.emitTransition(ctx, booking, trip.ID, from, actor)
	}
	return booking, nil
}

// transition moves booking to `to` if the table allows it for this actor
func (s *BookingService) transition(ctx context.Context, repo database.Repository, booking *models.Booking, trip *models.Trip, to models.BookingStatus, actor models.Actor, fulfilledDate *models.Date) error {
	t, ok := models.LookupTransition(booking.Status, to)
	if !ok {
		return fmt.Errorf("%w: cannot move a %s booking to %s", models.ErrIllegalTransition, booking.Status, to)
	}

	switch t.Actor {
	case models.ActorPayment:
		return fmt.Errorf("%w: bookings become paid only by recording a payment", models.ErrIllegalTransition)
	case models.ActorShipper:
		if actor.UserID != booking.ShipperID {
			return fmt.Errorf("%w: only the shipper can move a booking to %s", models.ErrForbidden, to)
		}
	case models.ActorCarrier:
		if actor.UserID != trip.CarrierID {
			return fmt.Errorf("%w: only the carrier can move a booking to %s", models.ErrForbidden, to)
		}
	case models.ActorAnyParty:
		if actor.Role != models.RoleSystem && actor.UserID != booking.ShipperID && actor.UserID != trip.CarrierID {
			return fmt.Errorf("%w: you are not a party to this booking", models.ErrForbidden)
		}
	}

	if t.Releases() {
		if err := s.ledger.Release(ctx, repo, booking.TripID, booking.LoadSize); err != nil {
			return err
		}
	}

	if to == models.BookingStatusFulfilled {
		date := models.Today()
		if fulfilledDate != nil {
			date = *fulfilledDate
		}
		booking.FulfilledDate = &date
	}

	booking.Status = to
	return nil
}

func editNotes(booking *models.Booking, current models.BookingStatus, actor models.Actor, notes string) error {
	if actor.UserID != booking.ShipperID {
		return fmt.Errorf("%w: only the shipper can edit notes", models.ErrForbidden)
	}
	if current.IsTerminal() {
		return fmt.Errorf("%w: notes cannot be edited on a %s booking", models.ErrValidation, current)
	}
	booking.Notes = &notes
	return nil
}

func markQRGenerated(booking *models.Booking, trip *models.Trip, actor models.Actor) error {
	if actor.UserID != trip.CarrierID {
		return fmt.Errorf("%w: only the carrier can generate the QR code", models.ErrForbidden)
	}
	if booking.Status != models.BookingStatusAccepted && booking.Status != models.BookingStatusFulfilled {
		return fmt.Errorf("%w: QR code requires an accepted or fulfilled booking", models.ErrValidation)
	}
	if !booking.QRGenerated {
		today := models.Today()
		booking.QRGenerated = true
		booking.QRGeneratedDate = &today
	}
	return nil
}

// CompleteStalePaidBookings completes bookings that have been paid for
// longer than olderThan and returns how many it completed
func (s *BookingService) CompleteStalePaidBookings(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := models.NewDate(time.Now().Add(-olderThan))

	stale, err := s.store.ListPaidBookingsBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	actor := models.SystemActor()
	completed := 0
	for _, candidate := range stale {
		var trip *models.Trip
		var booking *models.Booking
		err := s.store.WithTx(ctx, func(repo database.Repository) error {
			var err error
			booking, err = repo.GetBookingForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if booking.Status != models.BookingStatusPaid {
				booking = nil
				return nil
			}
			trip, err = repo.GetTripByID(ctx, booking.TripID)
			if err != nil {
				return err
			}
			if err := s.transition(ctx, repo, booking, trip, models.BookingStatusCompleted, actor, nil); err != nil {
				return err
			}
			if err := repo.UpdateBooking(ctx, booking, models.BookingStatusPaid); err != nil {
				return err
			}
			from := models.BookingStatusPaid
			return recordStatusEvent(ctx, repo, booking.ID, &from, booking.Status, actor)
		})
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", candidate.ID).Error("Failed to auto-complete booking")
			continue
		}
		if booking == nil {
			continue
		}
		completed++
		s.logTransition(booking, models.BookingStatusPaid, actor)
		s.emitTransition(ctx, booking, trip.ID, models.BookingStatusPaid, actor)
	}
	return completed, nil
}

func (s *BookingService) logTransition(booking *models.Booking, from models.BookingStatus, actor models.Actor) {
	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"from":       from,
		"to":         booking.Status,
		"actor_id":   actor.UserID,
		"actor_role": actor.Role,
	}).Info("Booking status changed")
}

func (s *BookingService) emitTransition(ctx context.Context, booking *models.Booking, tripID uuid.UUID, from models.BookingStatus, actor models.Actor) {
	evt := events.Event{
		Type:       events.BookingStatusChanged,
		BookingID:  &booking.ID,
		TripID:     tripID,
		FromStatus: string(from),
		ToStatus:   string(booking.Status),
		ActorRole:  actor.Role,
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		evt.ActorID = &id
	}
	s.emitter.Emit(ctx, evt)
}
