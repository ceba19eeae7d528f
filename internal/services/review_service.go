package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ReviewService lets the parties of a paid booking rate each other
type ReviewService struct {
	store   database.Store
	emitter *events.Emitter
	logger  *logrus.Logger
}

// NewReviewService creates a new review service
func NewReviewService(store database.Store, emitter *events.Emitter, logger *logrus.Logger) *ReviewService {
	return &ReviewService{
		store:   store,
		emitter: emitter,
		logger:  logger,
	}
}

// CreateReview records a review and refreshes the reviewed user's rating
func (s *ReviewService) CreateReview(ctx context.Context, actor models.Actor, req *models.CreateReviewRequest) (*models.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		review *models.Review
		trip   *models.Trip
	)
	err := s.store.WithTx(ctx, func(repo database.Repository) error {
		booking, err := repo.GetBookingByID(ctx, req.BookingID)
		if err != nil {
			return err
		}
		trip, err = repo.GetTripByID(ctx, booking.TripID)
		if err != nil {
			return err
		}

		var counterparty uuid.UUID
		switch actor.UserID {
		case booking.ShipperID:
			counterparty = trip.CarrierID
		case trip.CarrierID:
			counterparty = booking.ShipperID
		default:
			return fmt.Errorf("%w: you are not a party to this booking", models.ErrForbidden)
		}

		if !booking.Status.IsReviewable() {
			return fmt.Errorf("%w: booking is %s", models.ErrBookingNotEligible, booking.Status)
		}
		if req.ToUserID == actor.UserID {
			return fmt.Errorf("%w: you cannot review yourself", models.ErrValidation)
		}
		if req.ToUserID != counterparty {
			return fmt.Errorf("%w: to_user_id must be the other party of the booking", models.ErrValidation)
		}

		// Serialises rating updates for the reviewed user
		if _, err := repo.GetUserForUpdate(ctx, counterparty); err != nil {
			return err
		}

		exists, err := repo.ReviewExists(ctx, booking.ID, actor.UserID)
		if err != nil {
			return err
		}
		if exists {
			return models.ErrDuplicateReview
		}

		review = &models.Review{
			ID:          uuid.New(),
			BookingID:   booking.ID,
			FromUserID:  actor.UserID,
			ToUserID:    counterparty,
			Rating:      req.Rating,
			Comment:     req.Comment,
			CreatedDate: models.Today(),
		}
		if err := repo.CreateReview(ctx, review); err != nil {
			return err
		}

		ratings, err := repo.ListRatingsReceived(ctx, counterparty)
		if err != nil {
			return err
		}
		return repo.UpdateUserRating(ctx, counterparty, models.SummarizeRatings(ratings))
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"review_id":  review.ID,
		"booking_id": review.BookingID,
		"to_user_id": review.ToUserID,
		"rating":     review.Rating,
	}).Info("Review created")

	s.emitter.Emit(ctx, events.Event{
		Type:      events.ReviewCreated,
		BookingID: &review.BookingID,
		TripID:    trip.ID,
		ActorID:   &review.FromUserID,
		ActorRole: actor.Role,
	})

	return review, nil
}

// GetReview returns a review by ID
func (s *ReviewService) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	return s.store.GetReviewByID(ctx, id)
}

// ListReviews returns the reviews a user received when userID is set, and
// otherwise the reviews the actor wrote or received
func (s *ReviewService) ListReviews(ctx context.Context, actor models.Actor, userID *uuid.UUID) ([]models.Review, error) {
	if userID != nil {
		if _, err := s.store.GetUserByID(ctx, *userID); err != nil {
			return nil, err
		}
		return s.store.ListReviewsReceived(ctx, *userID)
	}
	return s.store.ListReviewsInvolving(ctx, actor.UserID)
}
