package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// TripStatus represents the status of a trip
type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// IsValid checks if the trip status is known
func (s TripStatus) IsValid() bool {
	switch s {
	case TripStatusActive, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// Trip represents a carrier-posted transport offering
type Trip struct {
	ID                uuid.UUID  `json:"id" db:"id"`
	CarrierID         uuid.UUID  `json:"carrier_id" db:"carrier_id"`
	VehicleID         uuid.UUID  `json:"vehicle_id" db:"vehicle_id"`
	Origin            string     `json:"origin" db:"origin"`
	Destination       string     `json:"destination" db:"destination"`
	DepartureDate     Date       `json:"departure_date" db:"departure_date"`
	ArrivalDate       Date       `json:"arrival_date" db:"arrival_date"`
	PricePerKg        float64    `json:"price_per_kg" db:"price_per_kg"`
	AvailableCapacity int        `json:"available_capacity" db:"available_capacity"`
	TotalCapacity     int        `json:"total_capacity" db:"total_capacity"`
	Status            TripStatus `json:"status" db:"status"`
	Description       *string    `json:"description,omitempty" db:"description"`
}

// Reserved returns the capacity currently held by bookings
func (t *Trip) Reserved() int {
	return t.TotalCapacity - t.AvailableCapacity
}

// IsActive reports whether the trip still accepts reservations
func (t *Trip) IsActive() bool {
	return t.Status == TripStatusActive
}

// PriceFor returns the price of load kg on this trip, rounded to cents
func (t *Trip) PriceFor(load int) float64 {
	return RoundMoney(float64(load) * t.PricePerKg)
}

// RoundMoney rounds an amount to two decimal places
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// CreateTripRequest represents the request to post a trip
type CreateTripRequest struct {
	VehicleID         uuid.UUID  `json:"vehicle_id" binding:"required"`
	Origin            string     `json:"origin" binding:"required,max=255"`
	Destination       string     `json:"destination" binding:"required,max=255"`
	DepartureDate     Date       `json:"departure_date"`
	ArrivalDate       Date       `json:"arrival_date"`
	PricePerKg        float64    `json:"price_per_kg" binding:"required,gt=0"`
	AvailableCapacity *int       `json:"available_capacity,omitempty"`
	Status            TripStatus `json:"status,omitempty"`
	Description       *string    `json:"description,omitempty"`
}

// Validate validates the create trip request
func (r *CreateTripRequest) Validate() error {
	r.Origin = strings.TrimSpace(r.Origin)
	r.Destination = strings.TrimSpace(r.Destination)
	if r.Origin == "" || r.Destination == "" {
		return fmt.Errorf("%w: origin and destination are required", ErrValidation)
	}
	if r.DepartureDate.IsZero() || r.ArrivalDate.IsZero() {
		return fmt.Errorf("%w: departure_date and arrival_date are required", ErrValidation)
	}
	if !r.DepartureDate.Before(r.ArrivalDate) {
		return fmt.Errorf("%w: arrival date must be after departure date", ErrValidation)
	}
	if r.PricePerKg <= 0 {
		return fmt.Errorf("%w: price_per_kg must be positive", ErrValidation)
	}
	if r.AvailableCapacity != nil && *r.AvailableCapacity < 0 {
		return fmt.Errorf("%w: available_capacity cannot be negative", ErrValidation)
	}
	if r.Status != "" && r.Status != TripStatusActive {
		return fmt.Errorf("%w: new trips must be active", ErrValidation)
	}
	return nil
}

// UpdateTripRequest is a partial trip update. Capacity fields are owned by
// the ledger and are not accepted here.
type UpdateTripRequest struct {
	VehicleID     *uuid.UUID  `json:"vehicle_id,omitempty"`
	Origin        *string     `json:"origin,omitempty" binding:"omitempty,max=255"`
	Destination   *string     `json:"destination,omitempty" binding:"omitempty,max=255"`
	DepartureDate *Date       `json:"departure_date,omitempty"`
	ArrivalDate   *Date       `json:"arrival_date,omitempty"`
	PricePerKg    *float64    `json:"price_per_kg,omitempty"`
	Status        *TripStatus `json:"status,omitempty"`
	Description   *string     `json:"description,omitempty"`
}

// Validate checks field-level rules that do not need the stored trip
func (r *UpdateTripRequest) Validate() error {
	if r.Origin != nil && strings.TrimSpace(*r.Origin) == "" {
		return fmt.Errorf("%w: origin cannot be empty", ErrValidation)
	}
	if r.Destination != nil && strings.TrimSpace(*r.Destination) == "" {
		return fmt.Errorf("%w: destination cannot be empty", ErrValidation)
	}
	if r.PricePerKg != nil && *r.PricePerKg <= 0 {
		return fmt.Errorf("%w: price_per_kg must be positive", ErrValidation)
	}
	if r.Status != nil && !r.Status.IsValid() {
		return fmt.Errorf("%w: unknown trip status %q", ErrValidation, *r.Status)
	}
	return nil
}

// TripFilter narrows the active trip listing
type TripFilter struct {
	Origin      string `form:"origin"`
	Destination string `form:"destination"`
	MinCapacity int    `form:"min_capacity" binding:"omitempty,min=0"`
}
