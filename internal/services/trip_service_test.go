package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tripRequest(vehicle *models.Vehicle) *models.CreateTripRequest {
	return &models.CreateTripRequest{
		VehicleID:     vehicle.ID,
		Origin:        " Delhi ",
		Destination:   "Jaipur",
		DepartureDate: models.NewDate(time.Now().AddDate(0, 0, 1)),
		ArrivalDate:   models.NewDate(time.Now().AddDate(0, 0, 2)),
		PricePerKg:    3,
	}
}

func TestCreateTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("Capacity Follows Vehicle", func(t *testing.T) {
		env := newTestEnv(t)
		vehicle := env.addVehicle(t, env.carrier, 1200, "DL01AB1234")

		trip, err := env.trips.CreateTrip(ctx, env.carrier, tripRequest(vehicle))
		require.NoError(t, err)
		assert.Equal(t, 1200, trip.TotalCapacity)
		assert.Equal(t, 1200, trip.AvailableCapacity)
		assert.Equal(t, "Delhi", trip.Origin)
		assert.Equal(t, models.TripStatusActive, trip.Status)
	})

	t.Run("Available Above Vehicle Capacity", func(t *testing.T) {
		env := newTestEnv(t)
		vehicle := env.addVehicle(t, env.carrier, 1200, "DL01AB1234")
		req := tripRequest(vehicle)
		tooMuch := 1500
		req.AvailableCapacity = &tooMuch

		_, err := env.trips.CreateTrip(ctx, env.carrier, req)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("Arrival Before Departure", func(t *testing.T) {
		env := newTestEnv(t)
		vehicle := env.addVehicle(t, env.carrier, 1200, "DL01AB1234")
		req := tripRequest(vehicle)
		req.ArrivalDate = req.DepartureDate

		_, err := env.trips.CreateTrip(ctx, env.carrier, req)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("Someone Else's Vehicle", func(t *testing.T) {
		env := newTestEnv(t)
		rival := env.addUser(t, "rival@example.com", models.RoleCarrier)
		vehicle := env.addVehicle(t, rival, 1200, "DL01AB1234")

		_, err := env.trips.CreateTrip(ctx, env.carrier, tripRequest(vehicle))
		assert.True(t, errors.Is(err, models.ErrForbidden))
	})

	t.Run("Shipper Cannot Post", func(t *testing.T) {
		env := newTestEnv(t)
		vehicle := env.addVehicle(t, env.carrier, 1200, "DL01AB1234")
		_, err := env.trips.CreateTrip(ctx, env.shipper, tripRequest(vehicle))
		assert.True(t, errors.Is(err, models.ErrForbidden))
	})
}

func TestUpdateTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("Vehicle Swap Keeps Reserved", func(t *testing.T) {
		env := newTestEnv(t)
		trip := env.addTrip(t, 1000)
		env.book(t, trip, 300)
		bigger := env.addVehicle(t, env.carrier, 2000, "MH14ZZ0001")

		updated, err := env.trips.UpdateTrip(ctx, env.carrier, trip.ID, &models.UpdateTripRequest{VehicleID: &bigger.ID})
		require.NoError(t, err)
		assert.Equal(t, 2000, updated.TotalCapacity)
		assert.Equal(t, 1700, updated.AvailableCapacity)
	})

	t.Run("Vehicle Too Small", func(t *testing.T) {
		env := newTestEnv(t)
		trip := env.addTrip(t, 1000)
		env.book(t, trip, 300)
		small := env.addVehicle(t, env.carrier, 200, "MH14ZZ0002")

		_, err := env.trips.UpdateTrip(ctx, env.carrier, trip.ID, &models.UpdateTripRequest{VehicleID: &small.ID})
		assert.True(t, errors.Is(err, models.ErrValidation))
		assert.Equal(t, 700, env.available(t, trip.ID))
	})

	t.Run("Price Frozen With Bookings", func(t *testing.T) {
		env := newTestEnv(t)
		trip := env.addTrip(t, 1000)
		env.book(t, trip, 300)
		price := 9.99

		_, err := env.trips.UpdateTrip(ctx, env.carrier, trip.ID, &models.UpdateTripRequest{PricePerKg: &price})
		assert.True(t, errors.Is(err, models.ErrConflict))
	})

	t.Run("Cancel With Open Bookings", func(t *testing.T) {
		env := newTestEnv(t)
		trip := env.addTrip(t, 1000)
		env.book(t, trip, 300)
		status := models.TripStatusCancelled

		_, err := env.trips.UpdateTrip(ctx, env.carrier, trip.ID, &models.UpdateTripRequest{Status: &status})
		assert.True(t, errors.Is(err, models.ErrConflict))
	})

	t.Run("Completed Trip Is Frozen", func(t *testing.T) {
		env := newTestEnv(t)
		trip := env.addTrip(t, 1000)
		status := models.TripStatusCompleted

		updated, err := env.trips.UpdateTrip(ctx, env.carrier, trip.ID, &models.UpdateTripRequest{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, models.TripStatusCompleted, updated.Status)
		assert.Contains(t, env.published.types(), events.TripStatusChanged)

		origin := "Nagpur"
		_, err = env.trips.UpdateTrip(ctx, env.carrier, trip.ID, &models.UpdateTripRequest{Origin: &origin})
		assert.True(t, errors.Is(err, models.ErrTripNotActive))

		active, err := env.trips.ListActiveTrips(ctx, models.TripFilter{})
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("Not Owner", func(t *testing.T) {
		env := newTestEnv(t)
		trip := env.addTrip(t, 1000)
		rival := env.addUser(t, "rival@example.com", models.RoleCarrier)
		origin := "Nagpur"

		_, err := env.trips.UpdateTrip(ctx, rival, trip.ID, &models.UpdateTripRequest{Origin: &origin})
		assert.True(t, errors.Is(err, models.ErrForbidden))
	})
}

func TestDeleteTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	trip := env.addTrip(t, 1000)
	booking := env.book(t, trip, 100)

	err := env.trips.DeleteTrip(ctx, env.carrier, trip.ID)
	assert.True(t, errors.Is(err, models.ErrConflict))

	env.move(t, env.carrier, booking, models.BookingStatusRejected)
	require.NoError(t, env.trips.DeleteTrip(ctx, env.carrier, trip.ID))

	_, err = env.trips.GetTrip(ctx, trip.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestListActiveTrips_Filter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addTrip(t, 300)
	large := env.addTrip(t, 1500)

	trips, err := env.trips.ListActiveTrips(ctx, models.TripFilter{Origin: "mum", MinCapacity: 500})
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, large.ID, trips[0].ID)

	trips, err = env.trips.ListActiveTrips(ctx, models.TripFilter{Destination: "pune"})
	require.NoError(t, err)
	assert.Len(t, trips, 2)
}
