package models

import (
	"github.com/google/uuid"
)

// PaymentStatus represents the state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is the immutable record of a shipper paying a carrier for a booking
type Payment struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	BookingID     uuid.UUID     `json:"booking_id" db:"booking_id"`
	FromUserID    uuid.UUID     `json:"from_user_id" db:"from_user_id"`
	ToUserID      uuid.UUID     `json:"to_user_id" db:"to_user_id"`
	Amount        float64       `json:"amount" db:"amount"`
	Status        PaymentStatus `json:"status" db:"status"`
	CreatedDate   Date          `json:"created_date" db:"created_date"`
	CompletedDate *Date         `json:"completed_date,omitempty" db:"completed_date"`
}

// IsParty reports whether userID sent or received the payment
func (p *Payment) IsParty(userID uuid.UUID) bool {
	return p.FromUserID == userID || p.ToUserID == userID
}
