package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// UserHandler serves user profiles
type UserHandler struct {
	userService *services.UserService
	logger      *logrus.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	user, err := h.userService.GetMe(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser handles GET /api/v1/users/:id. Callers see their own full
// profile and everyone else's public one.
func (h *UserHandler) GetUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if id == actor.UserID {
		h.GetMe(c)
		return
	}
	profile, err := h.userService.GetProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetShipper handles GET /api/v1/users/shipper/:id
func (h *UserHandler) GetShipper(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	profile, err := h.userService.GetShipper(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
