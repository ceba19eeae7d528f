package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// PaymentService records payments. Recording a payment is the only way a
// booking becomes paid.
type PaymentService struct {
	store   database.Store
	emitter *events.Emitter
	logger  *logrus.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(store database.Store, emitter *events.Emitter, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		store:   store,
		emitter: emitter,
		logger:  logger,
	}
}

// CreatePayment records the shipper's payment for a fulfilled booking and
// marks the booking paid
func (s *PaymentService) CreatePayment(ctx context.Context, actor models.Actor, bookingID uuid.UUID) (*models.Payment, error) {
	var (
		payment *models.Payment
		booking *models.Booking
		trip    *models.Trip
	)
	err := s.store.WithTx(ctx, func(repo database.Repository) error {
		var err error
		booking, trip, err = loadForParty(ctx, repo, actor, bookingID, true)
		if err != nil {
			return err
		}
		if actor.UserID != booking.ShipperID {
			return fmt.Errorf("%w: only the shipper can pay for a booking", models.ErrForbidden)
		}

		switch booking.Status {
		case models.BookingStatusFulfilled:
		case models.BookingStatusPaid, models.BookingStatusCompleted:
			return models.ErrAlreadyPaid
		default:
			return fmt.Errorf("%w: booking is %s", models.ErrBookingNotFulfilled, booking.Status)
		}

		if _, err := repo.GetActivePaymentByBooking(ctx, booking.ID); err == nil {
			return models.ErrAlreadyPaid
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}

		amount := trip.PriceFor(booking.LoadSize)
		if amount != booking.TotalPrice {
			return fmt.Errorf("payment amount %.2f does not match booking total %.2f for booking %s",
				amount, booking.TotalPrice, booking.ID)
		}

		today := models.Today()
		payment = &models.Payment{
			ID:            uuid.New(),
			BookingID:     booking.ID,
			FromUserID:    booking.ShipperID,
			ToUserID:      trip.CarrierID,
			Amount:        amount,
			Status:        models.PaymentStatusCompleted,
			CreatedDate:   today,
			CompletedDate: &today,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		booking.Status = models.BookingStatusPaid
		booking.PaidDate = &today
		if err := repo.UpdateBooking(ctx, booking, models.BookingStatusFulfilled); err != nil {
			return err
		}
		from := models.BookingStatusFulfilled
		return recordStatusEvent(ctx, repo, booking.ID, &from, booking.Status, actor)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"booking_id": booking.ID,
		"amount":     payment.Amount,
	}).Info("Payment recorded")

	s.emitter.Emit(ctx, events.Event{
		Type:       events.PaymentRecorded,
		BookingID:  &booking.ID,
		TripID:     trip.ID,
		FromStatus: string(models.BookingStatusFulfilled),
		ToStatus:   string(booking.Status),
		ActorID:    &payment.FromUserID,
		ActorRole:  actor.Role,
		Amount:     &payment.Amount,
	})

	return payment, nil
}

// GetPayment returns a payment to its sender or receiver
func (s *PaymentService) GetPayment(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.store.GetPaymentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !payment.IsParty(actor.UserID) {
		return nil, fmt.Errorf("%w: you are not a party to this payment", models.ErrForbidden)
	}
	return payment, nil
}

// ListPayments returns payments the actor sent or received
func (s *PaymentService) ListPayments(ctx context.Context, actor models.Actor) ([]models.Payment, error) {
	return s.store.ListPaymentsByUser(ctx, actor.UserID)
}
