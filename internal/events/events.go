package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Type names a lifecycle event
type Type string

const (
	BookingCreated       Type = "booking.created"
	BookingStatusChanged Type = "booking.status_changed"
	PaymentRecorded      Type = "payment.recorded"
	ReviewCreated        Type = "review.created"
	TripStatusChanged    Type = "trip.status_changed"
)

// Event is the message body published for every committed change
type Event struct {
	Type       Type              `json:"type"`
	BookingID  *uuid.UUID        `json:"booking_id,omitempty"`
	TripID     uuid.UUID         `json:"trip_id"`
	FromStatus string            `json:"from_status,omitempty"`
	ToStatus   string            `json:"to_status,omitempty"`
	ActorID    *uuid.UUID        `json:"actor_id,omitempty"`
	ActorRole  models.UserRole   `json:"actor_role"`
	Amount     *float64          `json:"amount,omitempty"`
	Capacity   *CapacitySnapshot `json:"capacity,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// CapacitySnapshot is the trip ledger after the change
type CapacitySnapshot struct {
	Available int `json:"available"`
	Total     int `json:"total"`
}

// Key groups events per booking, or per trip for trip-level events
func (e Event) Key() string {
	if e.BookingID != nil {
		return e.BookingID.String()
	}
	return e.TripID.String()
}

// publishTimeout bounds one publish once it no longer follows the request
const publishTimeout = 5 * time.Second

// Emitter publishes events after commit. Failures are logged and never
// returned, since the change they describe is already durable.
type Emitter struct {
	publisher Publisher
	logger    *logrus.Logger
}

// NewEmitter creates an Emitter
func NewEmitter(publisher Publisher, logger *logrus.Logger) *Emitter {
	return &Emitter{publisher: publisher, logger: logger}
}

// Emit stamps and publishes evt. Cancelling ctx does not abort the publish.
func (e *Emitter) Emit(ctx context.Context, evt Event) {
	if e == nil || e.publisher == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, evt.Key(), evt); err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": evt.Type,
			"key":        evt.Key(),
		}).Warn("Failed to publish event")
	}
}
