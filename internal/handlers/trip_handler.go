package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// TripHandler handles trip postings
type TripHandler struct {
	tripService *services.TripService
	logger      *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(tripService *services.TripService, logger *logrus.Logger) *TripHandler {
	return &TripHandler{tripService: tripService, logger: logger}
}

// CreateTrip handles POST /api/v1/trips/
func (h *TripHandler) CreateTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

// ListActiveTrips handles GET /api/v1/trips/all
func (h *TripHandler) ListActiveTrips(c *gin.Context) {
	var filter models.TripFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondBindError(c, err)
		return
	}

	trips, err := h.tripService.ListActiveTrips(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// ListMyTrips handles GET /api/v1/trips/my
func (h *TripHandler) ListMyTrips(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	trips, err := h.tripService.ListMyTrips(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// GetTrip handles GET /api/v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	trip, err := h.tripService.GetTrip(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// UpdateTrip handles PUT /api/v1/trips/:id
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	trip, err := h.tripService.UpdateTrip(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// DeleteTrip handles DELETE /api/v1/trips/:id
func (h *TripHandler) DeleteTrip(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.tripService.DeleteTrip(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
