package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusFulfilled BookingStatus = "fulfilled"
	BookingStatusPaid      BookingStatus = "paid"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsValid checks if the booking status is known
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusAccepted, BookingStatusRejected,
		BookingStatusFulfilled, BookingStatusPaid, BookingStatusCompleted,
		BookingStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave s
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusRejected || s == BookingStatusCompleted || s == BookingStatusCancelled
}

// HoldsCapacity reports whether a booking in s still occupies trip capacity
// that could be given back
func (s BookingStatus) HoldsCapacity() bool {
	return s == BookingStatusPending || s == BookingStatusAccepted
}

// IsReviewable reports whether reviews may be left for a booking in s
func (s BookingStatus) IsReviewable() bool {
	return s == BookingStatusPaid || s == BookingStatusCompleted
}

// TransitionActor names the party allowed to perform a transition
type TransitionActor string

const (
	ActorShipper TransitionActor = "shipper"
	ActorCarrier TransitionActor = "carrier"
	// ActorPayment marks transitions reachable only through the payment recorder
	ActorPayment TransitionActor = "payment"
	// ActorAnyParty allows either party or the system
	ActorAnyParty TransitionActor = "any"
)

// Transition is one row of the booking state machine
type Transition struct {
	From  BookingStatus
	To    BookingStatus
	Actor TransitionActor
}

// Releases reports whether the transition hands capacity back to the trip
func (t Transition) Releases() bool {
	return t.From.HoldsCapacity() && t.To.IsTerminal()
}

var transitions = []Transition{
	{BookingStatusPending, BookingStatusAccepted, ActorCarrier},
	{BookingStatusPending, BookingStatusRejected, ActorCarrier},
	{BookingStatusPending, BookingStatusCancelled, ActorShipper},
	{BookingStatusAccepted, BookingStatusCancelled, ActorShipper},
	{BookingStatusAccepted, BookingStatusFulfilled, ActorCarrier},
	{BookingStatusFulfilled, BookingStatusPaid, ActorPayment},
	{BookingStatusPaid, BookingStatusCompleted, ActorAnyParty},
}

// LookupTransition returns the table row for from -> to
func LookupTransition(from, to BookingStatus) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// Booking represents a shipper's reservation of trip capacity
type Booking struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	TripID          uuid.UUID     `json:"trip_id" db:"trip_id"`
	ShipperID       uuid.UUID     `json:"shipper_id" db:"shipper_id"`
	LoadSize        int           `json:"load_size" db:"load_size"`
	TotalPrice      float64       `json:"total_price" db:"total_price"`
	Status          BookingStatus `json:"status" db:"status"`
	CreatedDate     time.Time     `json:"created_date" db:"created_date"`
	FulfilledDate   *Date         `json:"fulfilled_date,omitempty" db:"fulfilled_date"`
	PaidDate        *Date         `json:"paid_date,omitempty" db:"paid_date"`
	Notes           *string       `json:"notes,omitempty" db:"notes"`
	QRGenerated     bool          `json:"qr_generated" db:"qr_generated"`
	QRGeneratedDate *Date         `json:"qr_generated_date,omitempty" db:"qr_generated_date"`
	UpdatedAt       time.Time     `json:"-" db:"updated_at"`
}

// CreateBookingRequest represents the request to book capacity on a trip
type CreateBookingRequest struct {
	TripID   uuid.UUID `json:"trip_id" binding:"required"`
	LoadSize int       `json:"load_size" binding:"required"`
	Notes    *string   `json:"notes,omitempty"`
}

// Validate validates the create booking request
func (r *CreateBookingRequest) Validate() error {
	if r.LoadSize <= 0 {
		return fmt.Errorf("%w: load_size must be greater than zero", ErrValidation)
	}
	return nil
}

// UpdateBookingRequest represents a booking update. Status drives the state
// machine; the remaining fields are plain edits.
type UpdateBookingRequest struct {
	Status        *BookingStatus `json:"status,omitempty"`
	FulfilledDate *Date          `json:"fulfilled_date,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
	QRGenerated   *bool          `json:"qr_generated,omitempty"`
}

// Validate validates the update booking request
func (r *UpdateBookingRequest) Validate() error {
	if r.Status == nil && r.Notes == nil && r.QRGenerated == nil && r.FulfilledDate == nil {
		return fmt.Errorf("%w: nothing to update", ErrValidation)
	}
	if r.Status != nil && !r.Status.IsValid() {
		return fmt.Errorf("%w: unknown booking status %q", ErrValidation, *r.Status)
	}
	if r.FulfilledDate != nil && (r.Status == nil || *r.Status != BookingStatusFulfilled) {
		return fmt.Errorf("%w: fulfilled_date can only be set together with status fulfilled", ErrValidation)
	}
	if r.QRGenerated != nil && !*r.QRGenerated {
		return fmt.Errorf("%w: qr_generated cannot be unset", ErrValidation)
	}
	return nil
}
