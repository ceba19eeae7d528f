package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// VehicleHandler handles a carrier's fleet
type VehicleHandler struct {
	vehicleService *services.VehicleService
	logger         *logrus.Logger
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicleService *services.VehicleService, logger *logrus.Logger) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService, logger: logger}
}

// CreateVehicle handles POST /api/v1/vehicles/
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.VehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	vehicle, err := h.vehicleService.CreateVehicle(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

// ListVehicles handles GET /api/v1/vehicles/
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	vehicles, err := h.vehicleService.ListVehicles(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// GetVehicle handles GET /api/v1/vehicles/:id
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	vehicle, err := h.vehicleService.GetVehicle(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// UpdateVehicle handles PUT /api/v1/vehicles/:id
func (h *VehicleHandler) UpdateVehicle(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.VehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	vehicle, err := h.vehicleService.UpdateVehicle(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// DeleteVehicle handles DELETE /api/v1/vehicles/:id
func (h *VehicleHandler) DeleteVehicle(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.vehicleService.DeleteVehicle(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
