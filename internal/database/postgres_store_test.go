package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveCapacity(t *testing.T) {
	ctx := context.Background()
	tripID := uuid.New()

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "Reserved", affected: 1, want: true},
		{name: "Insufficient Or Inactive", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setupMockStore(t)

			mock.ExpectExec(`UPDATE trips\s+SET available_capacity = available_capacity - \$2\s+WHERE id = \$1 AND status = 'active' AND available_capacity >= \$2`).
				WithArgs(tripID.String(), 400).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := store.ReserveCapacity(ctx, tripID, 400)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReleaseCapacity_ClampsToTotal(t *testing.T) {
	store, mock := setupMockStore(t)
	tripID := uuid.New()

	mock.ExpectExec(`LEAST\(total_capacity, available_capacity \+ \$2\)`).
		WithArgs(tripID.String(), 250).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.ReleaseCapacity(context.Background(), tripID, 250)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBooking_StatusChangedConcurrently(t *testing.T) {
	store, mock := setupMockStore(t)
	booking := &models.Booking{ID: uuid.New(), Status: models.BookingStatusAccepted}

	mock.ExpectQuery(`UPDATE bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	err := store.UpdateBooking(context.Background(), booking, models.BookingStatusPending)
	assert.ErrorIs(t, err, models.ErrIllegalTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBooking_Success(t *testing.T) {
	store, mock := setupMockStore(t)
	updatedAt := time.Now()
	booking := &models.Booking{ID: uuid.New(), Status: models.BookingStatusAccepted}

	mock.ExpectQuery(`UPDATE bookings`).
		WithArgs(booking.ID.String(), "accepted", nil, nil, nil, false, nil, "pending").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(updatedAt))

	err := store.UpdateBooking(context.Background(), booking, models.BookingStatusPending)
	require.NoError(t, err)
	assert.Equal(t, updatedAt, booking.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePayment_DuplicateIsAlreadyPaid(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_booking_active_key"})

	err := store.CreatePayment(context.Background(), &models.Payment{
		ID:          uuid.New(),
		BookingID:   uuid.New(),
		Status:      models.PaymentStatusCompleted,
		CreatedDate: models.Today(),
	})
	assert.ErrorIs(t, err, models.ErrAlreadyPaid)
}

func TestCreateReview_DuplicateIsDuplicateReview(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO reviews`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "reviews_booking_author_key"})

	err := store.CreateReview(context.Background(), &models.Review{ID: uuid.New(), Rating: 5})
	assert.ErrorIs(t, err, models.ErrDuplicateReview)
}

func TestCreateVehicle_DuplicateRCNumber(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`INSERT INTO vehicles`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "vehicles_rc_number_key"})

	err := store.CreateVehicle(context.Background(), &models.Vehicle{ID: uuid.New()})
	require.ErrorIs(t, err, models.ErrConflict)
	assert.Contains(t, err.Error(), "rc_number")
}

func TestDeleteVehicle_ReferencedByTrips(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(`DELETE FROM vehicles`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "trips_vehicle_id_fkey"})

	err := store.DeleteVehicle(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestListActiveTrips_BuildsFilter(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`WHERE status = 'active' AND origin ILIKE \$1 AND destination ILIKE \$2 AND available_capacity >= \$3 ORDER BY departure_date ASC`).
		WithArgs("%Pune%", "%Delhi%", 300).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	trips, err := store.ListActiveTrips(context.Background(), models.TripFilter{
		Origin:      " Pune ",
		Destination: "Delhi",
		MinCapacity: 300,
	})
	require.NoError(t, err)
	assert.Empty(t, trips)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	tripID := uuid.New()

	t.Run("Commit", func(t *testing.T) {
		store, mock := setupMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trips`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(ctx, func(repo Repository) error {
			_, err := repo.ReserveCapacity(ctx, tripID, 10)
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback On Error", func(t *testing.T) {
		store, mock := setupMockStore(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trips`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(repo Repository) error {
			if _, err := repo.ReserveCapacity(ctx, tripID, 10); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
