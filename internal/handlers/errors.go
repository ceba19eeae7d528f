package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/middleware"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{models.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{models.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{models.ErrCapacityExceeded, http.StatusConflict, "CAPACITY_EXCEEDED"},
	{models.ErrTripNotActive, http.StatusConflict, "TRIP_NOT_ACTIVE"},
	{models.ErrIllegalTransition, http.StatusConflict, "ILLEGAL_TRANSITION"},
	{models.ErrAlreadyPaid, http.StatusConflict, "ALREADY_PAID"},
	{models.ErrBookingNotFulfilled, http.StatusConflict, "BOOKING_NOT_FULFILLED"},
	{models.ErrDuplicateReview, http.StatusConflict, "DUPLICATE_REVIEW"},
	{models.ErrBookingNotEligible, http.StatusConflict, "BOOKING_NOT_ELIGIBLE"},
	{models.ErrConflict, http.StatusConflict, "CONFLICT"},
}

// respondError maps domain errors to their HTTP status. Anything else is
// logged and reported as an internal error.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.JSON(e.status, ErrorResponse{Detail: err.Error(), Code: e.code})
			return
		}
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	}).Error("Request failed")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Detail: "Internal server error",
		Code:   "INTERNAL_ERROR",
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Detail: "Invalid request body: " + err.Error(),
		Code:   "VALIDATION_ERROR",
	})
}

// pathID parses a UUID path parameter, writing a 400 when it is malformed
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Detail: "Invalid " + name + ": must be a UUID",
			Code:   "VALIDATION_ERROR",
		})
		return uuid.Nil, false
	}
	return id, true
}

// requireActor returns the authenticated actor or writes a 401
func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Detail: "Authentication required",
			Code:   "MISSING_USER_CONTEXT",
		})
	}
	return actor, ok
}
