package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler exposes the booking state machine
type BookingHandler struct {
	bookingService *services.BookingService
	logger         *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, logger: logger}
}

// CreateBooking handles POST /api/v1/bookings/
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// ListBookings handles GET /api/v1/bookings/
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	bookings, err := h.bookingService.ListBookings(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// ListTripBookings handles GET /api/v1/bookings/trip/:trip_id
func (h *BookingHandler) ListTripBookings(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	tripID, ok := pathID(c, "trip_id")
	if !ok {
		return
	}
	bookings, err := h.bookingService.ListTripBookings(c.Request.Context(), actor, tripID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	booking, err := h.bookingService.GetBooking(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// History handles GET /api/v1/bookings/:id/history
func (h *BookingHandler) History(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	history, err := h.bookingService.History(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// UpdateBooking handles PUT /api/v1/bookings/:id
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	booking, err := h.bookingService.UpdateBooking(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
