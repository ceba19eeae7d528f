package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
)

// UserRepository persists users
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetUserForUpdate locks the user row until the transaction ends
	GetUserForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserRating(ctx context.Context, id uuid.UUID, summary models.RatingSummary) error
}

// VehicleRepository persists carrier vehicles
type VehicleRepository interface {
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	GetVehicleByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error)
	ListVehiclesByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Vehicle, error)
	UpdateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	DeleteVehicle(ctx context.Context, id uuid.UUID) error
	CountActiveTripsByVehicle(ctx context.Context, vehicleID uuid.UUID) (int, error)
}

// TripRepository persists trips. ReserveCapacity and ReleaseCapacity are
// the only writes to available_capacity outside a locked UpdateTrip.
type TripRepository interface {
	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTripByID(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	GetTripForUpdate(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	ListActiveTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error)
	ListTripsByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Trip, error)
	UpdateTrip(ctx context.Context, trip *models.Trip) error
	DeleteTrip(ctx context.Context, id uuid.UUID) error

	// ReserveCapacity decrements available capacity if the trip is active
	// and has at least amount left. It reports false when nothing changed.
	ReserveCapacity(ctx context.Context, tripID uuid.UUID, amount int) (bool, error)
	// ReleaseCapacity adds amount back, clamped to total capacity. It
	// reports false when the trip is not active.
	ReleaseCapacity(ctx context.Context, tripID uuid.UUID, amount int) (bool, error)
}

// BookingRepository persists bookings and their status history
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListBookingsByShipper(ctx context.Context, shipperID uuid.UUID) ([]models.Booking, error)
	ListBookingsByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Booking, error)
	// ListBookingsByTrip returns all bookings of the trip, or only the
	// shipper's when shipperID is set
	ListBookingsByTrip(ctx context.Context, tripID uuid.UUID, shipperID *uuid.UUID) ([]models.Booking, error)
	CountBookingsByTrip(ctx context.Context, tripID uuid.UUID, statuses []models.BookingStatus) (int, error)
	// UpdateBooking writes the booking if its stored status still equals
	// expected, and returns ErrIllegalTransition otherwise
	UpdateBooking(ctx context.Context, booking *models.Booking, expected models.BookingStatus) error
	ListPaidBookingsBefore(ctx context.Context, cutoff models.Date, limit int) ([]models.Booking, error)

	CreateStatusEvent(ctx context.Context, event *models.BookingStatusEvent) error
	ListStatusEvents(ctx context.Context, bookingID uuid.UUID) ([]models.BookingStatusEvent, error)
}

// PaymentRepository persists payments
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	// GetActivePaymentByBooking returns the non-failed payment of a booking
	GetActivePaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
}

// ReviewRepository persists reviews
type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewByID(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ReviewExists(ctx context.Context, bookingID, fromUserID uuid.UUID) (bool, error)
	ListReviewsReceived(ctx context.Context, userID uuid.UUID) ([]models.Review, error)
	ListReviewsInvolving(ctx context.Context, userID uuid.UUID) ([]models.Review, error)
	ListRatingsReceived(ctx context.Context, userID uuid.UUID) ([]int, error)
}

// Repository is everything a service can read or write
type Repository interface {
	UserRepository
	VehicleRepository
	TripRepository
	BookingRepository
	PaymentRepository
	ReviewRepository
}

// Store is a Repository that can also run a unit of work atomically
type Store interface {
	Repository

	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(repo Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}

// now is overridden in tests
var now = time.Now
