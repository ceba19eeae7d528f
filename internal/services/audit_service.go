package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/loadlink/loadlink-backend/internal/utils"
)

// recordStatusEvent appends a history row for a booking status change
func recordStatusEvent(ctx context.Context, repo database.BookingRepository, bookingID uuid.UUID, from *models.BookingStatus, to models.BookingStatus, actor models.Actor) error {
	event := &models.BookingStatusEvent{
		ID:        uuid.New(),
		BookingID: bookingID,
		ToStatus:  to,
		ActorRole: actor.Role,
	}
	if from != nil {
		prev := *from
		event.FromStatus = &prev
	}
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		event.ActorID = &id
	}
	if actor.IP != "" {
		ip := actor.IP
		event.IPAddress = &ip
	}
	if actor.UserAgent != "" {
		info := utils.ParseUserAgent(actor.UserAgent)
		event.DeviceType = &info.DeviceType
		event.Platform = &info.Platform
	}
	return repo.CreateStatusEvent(ctx, event)
}
