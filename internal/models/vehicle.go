package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// VehicleType is the body type of a vehicle
type VehicleType string

const (
	VehicleTruck     VehicleType = "truck"
	VehicleVan       VehicleType = "van"
	VehicleTrailer   VehicleType = "trailer"
	VehicleContainer VehicleType = "container"
)

// IsValid checks if the vehicle type is known
func (t VehicleType) IsValid() bool {
	switch t {
	case VehicleTruck, VehicleVan, VehicleTrailer, VehicleContainer:
		return true
	}
	return false
}

// Vehicle represents a carrier's vehicle
type Vehicle struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	CarrierID    uuid.UUID   `json:"carrier_id" db:"carrier_id"`
	Type         VehicleType `json:"type" db:"type"`
	Capacity     int         `json:"capacity" db:"capacity"`
	LicensePlate string      `json:"license_plate" db:"license_plate"`
	RCNumber     string      `json:"rc_number" db:"rc_number"`
	IsActive     bool        `json:"is_active" db:"is_active"`
}

// VehicleRequest is used for both create and full update
type VehicleRequest struct {
	Type         VehicleType `json:"type" binding:"required"`
	Capacity     int         `json:"capacity" binding:"required,min=1"`
	LicensePlate string      `json:"license_plate" binding:"required,max=20"`
	RCNumber     string      `json:"rc_number" binding:"required,max=50"`
	IsActive     *bool       `json:"is_active,omitempty"`
}

// Validate validates the vehicle request
func (r *VehicleRequest) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: type must be one of truck, van, trailer, container", ErrValidation)
	}
	if r.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}
	r.LicensePlate = strings.ToUpper(strings.TrimSpace(r.LicensePlate))
	r.RCNumber = strings.TrimSpace(r.RCNumber)
	if r.LicensePlate == "" || r.RCNumber == "" {
		return fmt.Errorf("%w: license_plate and rc_number are required", ErrValidation)
	}
	return nil
}

// Apply copies the request onto v
func (r *VehicleRequest) Apply(v *Vehicle) {
	v.Type = r.Type
	v.Capacity = r.Capacity
	v.LicensePlate = r.LicensePlate
	v.RCNumber = r.RCNumber
	if r.IsActive != nil {
		v.IsActive = *r.IsActive
	}
}
