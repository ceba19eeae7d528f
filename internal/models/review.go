package models

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Review is one party's rating of the other after a paid booking
type Review struct {
	ID          uuid.UUID `json:"id" db:"id"`
	BookingID   uuid.UUID `json:"booking_id" db:"booking_id"`
	FromUserID  uuid.UUID `json:"from_user_id" db:"from_user_id"`
	ToUserID    uuid.UUID `json:"to_user_id" db:"to_user_id"`
	Rating      int       `json:"rating" db:"rating"`
	Comment     *string   `json:"comment,omitempty" db:"comment"`
	CreatedDate Date      `json:"created_date" db:"created_date"`
}

// CreateReviewRequest represents the request to review the other party
type CreateReviewRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	ToUserID  uuid.UUID `json:"to_user_id" binding:"required"`
	Rating    int       `json:"rating" binding:"required"`
	Comment   *string   `json:"comment,omitempty"`
}

// Validate validates the create review request
func (r *CreateReviewRequest) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	return nil
}

// RatingSummary is the aggregate of ratings a user received
type RatingSummary struct {
	Average float64
	Count   int
}

// SummarizeRatings returns the mean rounded to one decimal and the count
func SummarizeRatings(ratings []int) RatingSummary {
	if len(ratings) == 0 {
		return RatingSummary{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(ratings))
	return RatingSummary{
		Average: math.Round(mean*10) / 10,
		Count:   len(ratings),
	}
}
