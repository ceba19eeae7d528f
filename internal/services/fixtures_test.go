package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, value.(events.Event))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store     *database.MemoryStore
	published *recordingPublisher
	bookings  *BookingService
	payments  *PaymentService
	reviews   *ReviewService
	trips     *TripService
	vehicles  *VehicleService

	carrier models.Actor
	shipper models.Actor
	other   models.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := quietLogger()
	store := database.NewMemoryStore()
	pub := &recordingPublisher{}
	emitter := events.NewEmitter(pub, logger)
	ledger := NewLedger(logger)

	env := &testEnv{
		store:     store,
		published: pub,
		bookings:  NewBookingService(store, ledger, emitter, logger),
		payments:  NewPaymentService(store, emitter, logger),
		reviews:   NewReviewService(store, emitter, logger),
		trips:     NewTripService(store, ledger, emitter, logger),
		vehicles:  NewVehicleService(store, logger),
	}
	env.carrier = env.addUser(t, "carrier@example.com", models.RoleCarrier)
	env.shipper = env.addUser(t, "shipper@example.com", models.RoleShipper)
	env.other = env.addUser(t, "other@example.com", models.RoleShipper)
	return env
}

func (e *testEnv) addUser(t *testing.T, email string, role models.UserRole) models.Actor {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Name:         email,
		Email:        email,
		Role:         role,
		Phone:        "+919812345678",
		JoinedDate:   models.Today(),
		PasswordHash: "x",
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return models.Actor{UserID: user.ID, Role: role, IP: "127.0.0.1", UserAgent: "go-test"}
}

func (e *testEnv) addVehicle(t *testing.T, owner models.Actor, capacity int, plate string) *models.Vehicle {
	t.Helper()
	vehicle, err := e.vehicles.CreateVehicle(context.Background(), owner, &models.VehicleRequest{
		Type:         models.VehicleTruck,
		Capacity:     capacity,
		LicensePlate: plate,
		RCNumber:     "RC-" + plate,
	})
	require.NoError(t, err)
	return vehicle
}

// addTrip posts a trip with the carrier's vehicle of the given capacity
func (e *testEnv) addTrip(t *testing.T, capacity int) *models.Trip {
	t.Helper()
	vehicle := e.addVehicle(t, e.carrier, capacity, "MH12"+uuid.NewString()[:6])
	trip, err := e.trips.CreateTrip(context.Background(), e.carrier, &models.CreateTripRequest{
		VehicleID:     vehicle.ID,
		Origin:        "Mumbai",
		Destination:   "Pune",
		DepartureDate: models.NewDate(time.Now().AddDate(0, 0, 2)),
		ArrivalDate:   models.NewDate(time.Now().AddDate(0, 0, 3)),
		PricePerKg:    2.5,
	})
	require.NoError(t, err)
	return trip
}

func (e *testEnv) book(t *testing.T, trip *models.Trip, load int) *models.Booking {
	t.Helper()
	booking, err := e.bookings.CreateBooking(context.Background(), e.shipper, &models.CreateBookingRequest{
		TripID:   trip.ID,
		LoadSize: load,
	})
	require.NoError(t, err)
	return booking
}

func (e *testEnv) move(t *testing.T, actor models.Actor, booking *models.Booking, to models.BookingStatus) *models.Booking {
	t.Helper()
	updated, err := e.bookings.UpdateBooking(context.Background(), actor, booking.ID, &models.UpdateBookingRequest{Status: &to})
	require.NoError(t, err)
	return updated
}

// fulfilled books load kg and drives the booking to fulfilled
func (e *testEnv) fulfilled(t *testing.T, trip *models.Trip, load int) *models.Booking {
	t.Helper()
	booking := e.book(t, trip, load)
	e.move(t, e.carrier, booking, models.BookingStatusAccepted)
	return e.move(t, e.carrier, booking, models.BookingStatusFulfilled)
}

func (e *testEnv) available(t *testing.T, tripID uuid.UUID) int {
	t.Helper()
	trip, err := e.store.GetTripByID(context.Background(), tripID)
	require.NoError(t, err)
	return trip.AvailableCapacity
}

func statusPtr(s models.BookingStatus) *models.BookingStatus { return &s }
