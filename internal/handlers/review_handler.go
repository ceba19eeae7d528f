package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// ReviewHandler handles reviews between booking parties
type ReviewHandler struct {
	reviewService *services.ReviewService
	logger        *logrus.Logger
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewService *services.ReviewService, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, logger: logger}
}

// CreateReview handles POST /api/v1/reviews/
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	review, err := h.reviewService.CreateReview(c.Request.Context(), actor, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// ListReviews handles GET /api/v1/reviews/?user_id=
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "Invalid user_id: must be a UUID", Code: "VALIDATION_ERROR"})
			return
		}
		userID = &id
	}

	reviews, err := h.reviewService.ListReviews(c.Request.Context(), actor, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// GetReview handles GET /api/v1/reviews/:id
func (h *ReviewHandler) GetReview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	review, err := h.reviewService.GetReview(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, review)
}
