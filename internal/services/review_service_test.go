package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidBooking(t *testing.T, env *testEnv) *models.Booking {
	t.Helper()
	booking := env.fulfilled(t, env.addTrip(t, 1000), 100)
	_, err := env.payments.CreatePayment(context.Background(), env.shipper, booking.ID)
	require.NoError(t, err)
	return booking
}

func TestCreateReview(t *testing.T) {
	ctx := context.Background()

	t.Run("Both Parties Review And Ratings Update", func(t *testing.T) {
		env := newTestEnv(t)
		booking := paidBooking(t, env)

		review, err := env.reviews.CreateReview(ctx, env.shipper, &models.CreateReviewRequest{
			BookingID: booking.ID,
			ToUserID:  env.carrier.UserID,
			Rating:    4,
		})
		require.NoError(t, err)
		assert.Equal(t, env.shipper.UserID, review.FromUserID)

		_, err = env.reviews.CreateReview(ctx, env.carrier, &models.CreateReviewRequest{
			BookingID: booking.ID,
			ToUserID:  env.shipper.UserID,
			Rating:    5,
		})
		require.NoError(t, err)

		carrier, err := env.store.GetUserByID(ctx, env.carrier.UserID)
		require.NoError(t, err)
		assert.Equal(t, 4.0, carrier.Rating)
		assert.Equal(t, 1, carrier.ReviewCount)

		second := paidBooking(t, env)
		_, err = env.reviews.CreateReview(ctx, env.shipper, &models.CreateReviewRequest{
			BookingID: second.ID,
			ToUserID:  env.carrier.UserID,
			Rating:    5,
		})
		require.NoError(t, err)

		carrier, err = env.store.GetUserByID(ctx, env.carrier.UserID)
		require.NoError(t, err)
		assert.Equal(t, 4.5, carrier.Rating)
		assert.Equal(t, 2, carrier.ReviewCount)
	})

	t.Run("Before Payment", func(t *testing.T) {
		env := newTestEnv(t)
		booking := env.fulfilled(t, env.addTrip(t, 1000), 100)

		_, err := env.reviews.CreateReview(ctx, env.shipper, &models.CreateReviewRequest{
			BookingID: booking.ID,
			ToUserID:  env.carrier.UserID,
			Rating:    4,
		})
		assert.True(t, errors.Is(err, models.ErrBookingNotEligible))
	})

	t.Run("Duplicate", func(t *testing.T) {
		env := newTestEnv(t)
		booking := paidBooking(t, env)
		req := &models.CreateReviewRequest{BookingID: booking.ID, ToUserID: env.carrier.UserID, Rating: 3}

		_, err := env.reviews.CreateReview(ctx, env.shipper, req)
		require.NoError(t, err)
		_, err = env.reviews.CreateReview(ctx, env.shipper, req)
		assert.True(t, errors.Is(err, models.ErrDuplicateReview))
	})

	t.Run("Self Review", func(t *testing.T) {
		env := newTestEnv(t)
		booking := paidBooking(t, env)
		_, err := env.reviews.CreateReview(ctx, env.shipper, &models.CreateReviewRequest{
			BookingID: booking.ID,
			ToUserID:  env.shipper.UserID,
			Rating:    5,
		})
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("Outsider", func(t *testing.T) {
		env := newTestEnv(t)
		booking := paidBooking(t, env)
		_, err := env.reviews.CreateReview(ctx, env.other, &models.CreateReviewRequest{
			BookingID: booking.ID,
			ToUserID:  env.carrier.UserID,
			Rating:    1,
		})
		assert.True(t, errors.Is(err, models.ErrForbidden))
	})

	t.Run("Outsider On Pending Booking", func(t *testing.T) {
		env := newTestEnv(t)
		booking := env.book(t, env.addTrip(t, 1000), 100)
		_, err := env.reviews.CreateReview(ctx, env.other, &models.CreateReviewRequest{
			BookingID: booking.ID,
			ToUserID:  env.carrier.UserID,
			Rating:    1,
		})
		assert.True(t, errors.Is(err, models.ErrForbidden))
		assert.False(t, errors.Is(err, models.ErrBookingNotEligible))
	})

	t.Run("Rating Out Of Range", func(t *testing.T) {
		env := newTestEnv(t)
		booking := paidBooking(t, env)
		_, err := env.reviews.CreateReview(ctx, env.shipper, &models.CreateReviewRequest{
			BookingID: booking.ID,
			ToUserID:  env.carrier.UserID,
			Rating:    6,
		})
		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}

func TestListReviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	booking := paidBooking(t, env)

	_, err := env.reviews.CreateReview(ctx, env.shipper, &models.CreateReviewRequest{
		BookingID: booking.ID,
		ToUserID:  env.carrier.UserID,
		Rating:    4,
	})
	require.NoError(t, err)

	involving, err := env.reviews.ListReviews(ctx, env.shipper, nil)
	require.NoError(t, err)
	assert.Len(t, involving, 1)

	carrierID := env.carrier.UserID
	received, err := env.reviews.ListReviews(ctx, env.other, &carrierID)
	require.NoError(t, err)
	assert.Len(t, received, 1)

	shipperID := env.shipper.UserID
	received, err = env.reviews.ListReviews(ctx, env.other, &shipperID)
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestCreateReview_LocksRevieweeBeforeAggregating(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := quietLogger()
	store := database.NewPostgresStore(sqlx.NewDb(db, "sqlmock"))
	reviews := NewReviewService(store, events.NewEmitter(&recordingPublisher{}, logger), logger)

	bookingID, tripID := uuid.New(), uuid.New()
	shipperID, carrierID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \$1`).
		WithArgs(bookingID.String()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "trip_id", "shipper_id", "load_size", "total_price", "status",
			"created_date", "fulfilled_date", "paid_date", "notes", "qr_generated",
			"qr_generated_date", "updated_at",
		}).AddRow(bookingID.String(), tripID.String(), shipperID.String(), 100, 250.0, "paid",
			now, now, now, nil, false, nil, now))
	mock.ExpectQuery(`FROM trips WHERE id = \$1`).
		WithArgs(tripID.String()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "carrier_id", "vehicle_id", "origin", "destination", "departure_date",
			"arrival_date", "price_per_kg", "available_capacity", "total_capacity", "status", "description",
		}).AddRow(tripID.String(), carrierID.String(), uuid.NewString(), "Mumbai", "Pune", now,
			now.AddDate(0, 0, 1), 2.5, 900, 1000, "active", nil))
	mock.ExpectQuery(`FROM users WHERE id = \$1 FOR UPDATE`).
		WithArgs(carrierID.String()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "role", "phone", "rating", "review_count",
			"joined_date", "avatar", "password_hash", "created_at",
		}).AddRow(carrierID.String(), "Carrier", "carrier@example.com", "carrier", "+919812345678",
			5.0, 1, now, nil, "hash", now))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO reviews`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT rating FROM reviews WHERE to_user_id = \$1`).
		WithArgs(carrierID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(5).AddRow(3))
	mock.ExpectExec(`UPDATE users SET rating = \$2, review_count = \$3 WHERE id = \$1`).
		WithArgs(carrierID.String(), 4.0, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	review, err := reviews.CreateReview(context.Background(), models.Actor{UserID: shipperID, Role: models.RoleShipper},
		&models.CreateReviewRequest{BookingID: bookingID, ToUserID: carrierID, Rating: 3})
	require.NoError(t, err)
	assert.Equal(t, carrierID, review.ToUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
