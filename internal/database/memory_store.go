package database

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
)

// MemoryStore is a Store kept in process memory. Transactions hold the
// write lock for their whole duration and work on a copy of the data that
// replaces the original only when fn succeeds.
type MemoryStore struct {
	*memRepo
	mu   sync.RWMutex
	data *memoryData
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{data: newMemoryData()}
	s.memRepo = &memRepo{store: s}
	return s
}

// WithTx runs fn atomically. Calling methods on the MemoryStore itself from
// inside fn deadlocks; use the repo passed to fn.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(repo Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(&memRepo{tx: working}); err != nil {
		return err
	}
	s.data = working
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

type memoryData struct {
	seq      uint64
	order    map[uuid.UUID]uint64
	users    map[uuid.UUID]models.User
	vehicles map[uuid.UUID]models.Vehicle
	trips    map[uuid.UUID]models.Trip
	bookings map[uuid.UUID]models.Booking
	events   map[uuid.UUID][]models.BookingStatusEvent
	payments map[uuid.UUID]models.Payment
	reviews  map[uuid.UUID]models.Review
}

func newMemoryData() *memoryData {
	return &memoryData{
		order:    make(map[uuid.UUID]uint64),
		users:    make(map[uuid.UUID]models.User),
		vehicles: make(map[uuid.UUID]models.Vehicle),
		trips:    make(map[uuid.UUID]models.Trip),
		bookings: make(map[uuid.UUID]models.Booking),
		events:   make(map[uuid.UUID][]models.BookingStatusEvent),
		payments: make(map[uuid.UUID]models.Payment),
		reviews:  make(map[uuid.UUID]models.Review),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	c.seq = d.seq
	for k, v := range d.order {
		c.order[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range d.trips {
		c.trips[k] = v
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.events {
		c.events[k] = append([]models.BookingStatusEvent(nil), v...)
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.reviews {
		c.reviews[k] = v
	}
	return c
}

func (d *memoryData) track(id uuid.UUID) {
	d.seq++
	d.order[id] = d.seq
}

// memRepo implements Repository either directly on the store, taking the
// lock per call, or on a transaction's working copy
type memRepo struct {
	store *MemoryStore
	tx    *memoryData
}

func (r *memRepo) read(ctx context.Context, fn func(d *memoryData) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return fn(r.store.data)
}

func (r *memRepo) write(ctx context.Context, fn func(d *memoryData) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.tx != nil {
		return fn(r.tx)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.data)
}

func idLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// Users

func (r *memRepo) CreateUser(ctx context.Context, user *models.User) error {
	return r.write(ctx, func(d *memoryData) error {
		for _, u := range d.users {
			if u.Email == user.Email {
				return fmt.Errorf("%w: email is already registered", models.ErrConflict)
			}
		}
		if user.JoinedDate.IsZero() {
			user.JoinedDate = models.NewDate(now())
		}
		user.CreatedAt = now()
		d.users[user.ID] = *user
		d.track(user.ID)
		return nil
	})
}

func (r *memRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.read(ctx, func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return models.NotFound("user")
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserForUpdate is GetUserByID; the transaction already holds the lock
func (r *memRepo) GetUserForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.GetUserByID(ctx, id)
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.read(ctx, func(d *memoryData) error {
		for _, u := range d.users {
			if u.Email == email {
				user = u
				return nil
			}
		}
		return models.NotFound("user")
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *memRepo) UpdateUserRating(ctx context.Context, id uuid.UUID, summary models.RatingSummary) error {
	return r.write(ctx, func(d *memoryData) error {
		u, ok := d.users[id]
		if !ok {
			return models.NotFound("user")
		}
		u.Rating = summary.Average
		u.ReviewCount = summary.Count
		d.users[id] = u
		return nil
	})
}

// Vehicles

func checkVehicleUnique(d *memoryData, v *models.Vehicle) error {
	for _, other := range d.vehicles {
		if other.ID == v.ID {
			continue
		}
		if other.LicensePlate == v.LicensePlate {
			return fmt.Errorf("%w: license_plate is already registered", models.ErrConflict)
		}
		if other.RCNumber == v.RCNumber {
			return fmt.Errorf("%w: rc_number is already registered", models.ErrConflict)
		}
	}
	return nil
}

func (r *memRepo) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	return r.write(ctx, func(d *memoryData) error {
		if err := checkVehicleUnique(d, vehicle); err != nil {
			return err
		}
		d.vehicles[vehicle.ID] = *vehicle
		d.track(vehicle.ID)
		return nil
	})
}

func (r *memRepo) GetVehicleByID(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.read(ctx, func(d *memoryData) error {
		v, ok := d.vehicles[id]
		if !ok {
			return models.NotFound("vehicle")
		}
		vehicle = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *memRepo) ListVehiclesByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Vehicle, error) {
	vehicles := []models.Vehicle{}
	err := r.read(ctx, func(d *memoryData) error {
		for _, v := range d.vehicles {
			if v.CarrierID == carrierID {
				vehicles = append(vehicles, v)
			}
		}
		return nil
	})
	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].LicensePlate < vehicles[j].LicensePlate
	})
	return vehicles, err
}

func (r *memRepo) UpdateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	return r.write(ctx, func(d *memoryData) error {
		if _, ok := d.vehicles[vehicle.ID]; !ok {
			return models.NotFound("vehicle")
		}
		if err := checkVehicleUnique(d, vehicle); err != nil {
			return err
		}
		d.vehicles[vehicle.ID] = *vehicle
		return nil
	})
}

func (r *memRepo) DeleteVehicle(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(d *memoryData) error {
		if _, ok := d.vehicles[id]; !ok {
			return models.NotFound("vehicle")
		}
		for _, t := range d.trips {
			if t.VehicleID == id {
				return fmt.Errorf("%w: vehicle is referenced by trips", models.ErrConflict)
			}
		}
		delete(d.vehicles, id)
		delete(d.order, id)
		return nil
	})
}

func (r *memRepo) CountActiveTripsByVehicle(ctx context.Context, vehicleID uuid.UUID) (int, error) {
	count := 0
	err := r.read(ctx, func(d *memoryData) error {
		for _, t := range d.trips {
			if t.VehicleID == vehicleID && t.Status == models.TripStatusActive {
				count++
			}
		}
		return nil
	})
	return count, err
}

// Trips

func (r *memRepo) CreateTrip(ctx context.Context, trip *models.Trip) error {
	return r.write(ctx, func(d *memoryData) error {
		d.trips[trip.ID] = *trip
		d.track(trip.ID)
		return nil
	})
}

func (r *memRepo) GetTripByID(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	err := r.read(ctx, func(d *memoryData) error {
		t, ok := d.trips[id]
		if !ok {
			return models.NotFound("trip")
		}
		trip = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// GetTripForUpdate is GetTripByID; the transaction already holds the lock
func (r *memRepo) GetTripForUpdate(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	return r.GetTripByID(ctx, id)
}

func (r *memRepo) ListActiveTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error) {
	origin := strings.ToLower(strings.TrimSpace(filter.Origin))
	destination := strings.ToLower(strings.TrimSpace(filter.Destination))

	trips := []models.Trip{}
	err := r.read(ctx, func(d *memoryData) error {
		for _, t := range d.trips {
			if t.Status != models.TripStatusActive {
				continue
			}
			if origin != "" && !strings.Contains(strings.ToLower(t.Origin), origin) {
				continue
			}
			if destination != "" && !strings.Contains(strings.ToLower(t.Destination), destination) {
				continue
			}
			if t.AvailableCapacity < filter.MinCapacity {
				continue
			}
			trips = append(trips, t)
		}
		return nil
	})
	sort.Slice(trips, func(i, j int) bool {
		if !trips[i].DepartureDate.Equal(trips[j].DepartureDate.Time) {
			return trips[i].DepartureDate.Before(trips[j].DepartureDate)
		}
		return idLess(trips[i].ID, trips[j].ID)
	})
	return trips, err
}

func (r *memRepo) ListTripsByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Trip, error) {
	trips := []models.Trip{}
	err := r.read(ctx, func(d *memoryData) error {
		for _, t := range d.trips {
			if t.CarrierID == carrierID {
				trips = append(trips, t)
			}
		}
		return nil
	})
	sort.Slice(trips, func(i, j int) bool {
		if !trips[i].DepartureDate.Equal(trips[j].DepartureDate.Time) {
			return trips[j].DepartureDate.Before(trips[i].DepartureDate)
		}
		return idLess(trips[i].ID, trips[j].ID)
	})
	return trips, err
}

func (r *memRepo) UpdateTrip(ctx context.Context, trip *models.Trip) error {
	return r.write(ctx, func(d *memoryData) error {
		if _, ok := d.trips[trip.ID]; !ok {
			return models.NotFound("trip")
		}
		if trip.AvailableCapacity < 0 || trip.AvailableCapacity > trip.TotalCapacity {
			return fmt.Errorf("trip capacity out of bounds: available %d, total %d",
				trip.AvailableCapacity, trip.TotalCapacity)
		}
		d.trips[trip.ID] = *trip
		return nil
	})
}

func (r *memRepo) DeleteTrip(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(d *memoryData) error {
		if _, ok := d.trips[id]; !ok {
			return models.NotFound("trip")
		}
		delete(d.trips, id)
		delete(d.order, id)
		for bid, b := range d.bookings {
			if b.TripID != id {
				continue
			}
			delete(d.bookings, bid)
			delete(d.order, bid)
			delete(d.events, bid)
			for pid, p := range d.payments {
				if p.BookingID == bid {
					delete(d.payments, pid)
				}
			}
			for rid, rv := range d.reviews {
				if rv.BookingID == bid {
					delete(d.reviews, rid)
				}
			}
		}
		return nil
	})
}

func (r *memRepo) ReserveCapacity(ctx context.Context, tripID uuid.UUID, amount int) (bool, error) {
	reserved := false
	err := r.write(ctx, func(d *memoryData) error {
		t, ok := d.trips[tripID]
		if !ok || t.Status != models.TripStatusActive || t.AvailableCapacity < amount {
			return nil
		}
		t.AvailableCapacity -= amount
		d.trips[tripID] = t
		reserved = true
		return nil
	})
	return reserved, err
}

func (r *memRepo) ReleaseCapacity(ctx context.Context, tripID uuid.UUID, amount int) (bool, error) {
	released := false
	err := r.write(ctx, func(d *memoryData) error {
		t, ok := d.trips[tripID]
		if !ok || t.Status != models.TripStatusActive {
			return nil
		}
		t.AvailableCapacity += amount
		if t.AvailableCapacity > t.TotalCapacity {
			t.AvailableCapacity = t.TotalCapacity
		}
		d.trips[tripID] = t
		released = true
		return nil
	})
	return released, err
}

// Bookings

func sortBookingsNewestFirst(bookings []models.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].CreatedDate.Equal(bookings[j].CreatedDate) {
			return bookings[i].CreatedDate.After(bookings[j].CreatedDate)
		}
		return idLess(bookings[i].ID, bookings[j].ID)
	})
}

func (r *memRepo) CreateBooking(ctx context.Context, booking *models.Booking) error {
	return r.write(ctx, func(d *memoryData) error {
		if _, ok := d.trips[booking.TripID]; !ok {
			return models.NotFound("trip")
		}
		booking.CreatedDate = now()
		booking.UpdatedAt = booking.CreatedDate
		d.bookings[booking.ID] = *booking
		d.track(booking.ID)
		return nil
	})
}

func (r *memRepo) GetBookingByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.read(ctx, func(d *memoryData) error {
		b, ok := d.bookings[id]
		if !ok {
			return models.NotFound("booking")
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetBookingForUpdate is GetBookingByID; the transaction already holds the lock
func (r *memRepo) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.GetBookingByID(ctx, id)
}

func (r *memRepo) listBookings(ctx context.Context, keep func(d *memoryData, b models.Booking) bool) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.read(ctx, func(d *memoryData) error {
		for _, b := range d.bookings {
			if keep(d, b) {
				bookings = append(bookings, b)
			}
		}
		return nil
	})
	sortBookingsNewestFirst(bookings)
	return bookings, err
}

func (r *memRepo) ListBookingsByShipper(ctx context.Context, shipperID uuid.UUID) ([]models.Booking, error) {
	return r.listBookings(ctx, func(_ *memoryData, b models.Booking) bool {
		return b.ShipperID == shipperID
	})
}

func (r *memRepo) ListBookingsByCarrier(ctx context.Context, carrierID uuid.UUID) ([]models.Booking, error) {
	return r.listBookings(ctx, func(d *memoryData, b models.Booking) bool {
		t, ok := d.trips[b.TripID]
		return ok && t.CarrierID == carrierID
	})
}

func (r *memRepo) ListBookingsByTrip(ctx context.Context, tripID uuid.UUID, shipperID *uuid.UUID) ([]models.Booking, error) {
	return r.listBookings(ctx, func(_ *memoryData, b models.Booking) bool {
		return b.TripID == tripID && (shipperID == nil || b.ShipperID == *shipperID)
	})
}

func (r *memRepo) CountBookingsByTrip(ctx context.Context, tripID uuid.UUID, statuses []models.BookingStatus) (int, error) {
	count := 0
	err := r.read(ctx, func(d *memoryData) error {
		for _, b := range d.bookings {
			if b.TripID != tripID {
				continue
			}
			for _, s := range statuses {
				if b.Status == s {
					count++
					break
				}
			}
		}
		return nil
	})
	return count, err
}

func (r *memRepo) UpdateBooking(ctx context.Context, booking *models.Booking, expected models.BookingStatus) error {
	return r.write(ctx, func(d *memoryData) error {
		stored, ok := d.bookings[booking.ID]
		if !ok || stored.Status != expected {
			return fmt.Errorf("%w: booking is no longer %s", models.ErrIllegalTransition, expected)
		}
		booking.UpdatedAt = now()
		d.bookings[booking.ID] = *booking
		return nil
	})
}

func (r *memRepo) ListPaidBookingsBefore(ctx context.Context, cutoff models.Date, limit int) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := r.read(ctx, func(d *memoryData) error {
		for _, b := range d.bookings {
			if b.Status == models.BookingStatusPaid && b.PaidDate != nil && b.PaidDate.Before(cutoff) {
				bookings = append(bookings, b)
			}
		}
		return nil
	})
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].PaidDate.Equal(bookings[j].PaidDate.Time) {
			return bookings[i].PaidDate.Before(*bookings[j].PaidDate)
		}
		return idLess(bookings[i].ID, bookings[j].ID)
	})
	if limit > 0 && len(bookings) > limit {
		bookings = bookings[:limit]
	}
	return bookings, err
}

func (r *memRepo) CreateStatusEvent(ctx context.Context, event *models.BookingStatusEvent) error {
	return r.write(ctx, func(d *memoryData) error {
		if _, ok := d.bookings[event.BookingID]; !ok {
			return models.NotFound("booking")
		}
		event.CreatedAt = now()
		d.events[event.BookingID] = append(d.events[event.BookingID], *event)
		return nil
	})
}

func (r *memRepo) ListStatusEvents(ctx context.Context, bookingID uuid.UUID) ([]models.BookingStatusEvent, error) {
	events := []models.BookingStatusEvent{}
	err := r.read(ctx, func(d *memoryData) error {
		events = append(events, d.events[bookingID]...)
		return nil
	})
	return events, err
}

// Payments

func (r *memRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.write(ctx, func(d *memoryData) error {
		if payment.Status != models.PaymentStatusFailed {
			for _, p := range d.payments {
				if p.BookingID == payment.BookingID && p.Status != models.PaymentStatusFailed {
					return models.ErrAlreadyPaid
				}
			}
		}
		d.payments[payment.ID] = *payment
		d.track(payment.ID)
		return nil
	})
}

func (r *memRepo) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.read(ctx, func(d *memoryData) error {
		p, ok := d.payments[id]
		if !ok {
			return models.NotFound("payment")
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *memRepo) GetActivePaymentByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.read(ctx, func(d *memoryData) error {
		for _, p := range d.payments {
			if p.BookingID == bookingID && p.Status != models.PaymentStatusFailed {
				payment = p
				return nil
			}
		}
		return models.NotFound("payment")
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *memRepo) ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := r.read(ctx, func(d *memoryData) error {
		for _, p := range d.payments {
			if p.IsParty(userID) {
				payments = append(payments, p)
			}
		}
		sort.Slice(payments, func(i, j int) bool {
			return d.order[payments[i].ID] > d.order[payments[j].ID]
		})
		return nil
	})
	return payments, err
}

// Reviews

func (r *memRepo) CreateReview(ctx context.Context, review *models.Review) error {
	return r.write(ctx, func(d *memoryData) error {
		for _, rv := range d.reviews {
			if rv.BookingID == review.BookingID && rv.FromUserID == review.FromUserID {
				return models.ErrDuplicateReview
			}
		}
		d.reviews[review.ID] = *review
		d.track(review.ID)
		return nil
	})
}

func (r *memRepo) GetReviewByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.read(ctx, func(d *memoryData) error {
		rv, ok := d.reviews[id]
		if !ok {
			return models.NotFound("review")
		}
		review = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *memRepo) ReviewExists(ctx context.Context, bookingID, fromUserID uuid.UUID) (bool, error) {
	exists := false
	err := r.read(ctx, func(d *memoryData) error {
		for _, rv := range d.reviews {
			if rv.BookingID == bookingID && rv.FromUserID == fromUserID {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (r *memRepo) listReviews(ctx context.Context, keep func(rv models.Review) bool) ([]models.Review, error) {
	reviews := []models.Review{}
	err := r.read(ctx, func(d *memoryData) error {
		for _, rv := range d.reviews {
			if keep(rv) {
				reviews = append(reviews, rv)
			}
		}
		sort.Slice(reviews, func(i, j int) bool {
			return d.order[reviews[i].ID] > d.order[reviews[j].ID]
		})
		return nil
	})
	return reviews, err
}

func (r *memRepo) ListReviewsReceived(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	return r.listReviews(ctx, func(rv models.Review) bool {
		return rv.ToUserID == userID
	})
}

func (r *memRepo) ListReviewsInvolving(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	return r.listReviews(ctx, func(rv models.Review) bool {
		return rv.ToUserID == userID || rv.FromUserID == userID
	})
}

func (r *memRepo) ListRatingsReceived(ctx context.Context, userID uuid.UUID) ([]int, error) {
	ratings := []int{}
	err := r.read(ctx, func(d *memoryData) error {
		for _, rv := range d.reviews {
			if rv.ToUserID == userID {
				ratings = append(ratings, rv.Rating)
			}
		}
		return nil
	})
	return ratings, err
}
