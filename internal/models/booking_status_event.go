package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatusEvent is an immutable history row written with every
// booking status change
type BookingStatusEvent struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	BookingID  uuid.UUID      `json:"booking_id" db:"booking_id"`
	FromStatus *BookingStatus `json:"from_status,omitempty" db:"from_status"`
	ToStatus   BookingStatus  `json:"to_status" db:"to_status"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole  UserRole       `json:"actor_role" db:"actor_role"`
	IPAddress  *string        `json:"ip_address,omitempty" db:"ip_address"`
	DeviceType *string        `json:"device_type,omitempty" db:"device_type"`
	Platform   *string        `json:"platform,omitempty" db:"platform"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
