package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// PaymentHandler records and lists payments
type PaymentHandler struct {
	paymentService *services.PaymentService
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, logger: logger}
}

// CreatePayment handles POST /api/v1/payments/:booking_id
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "booking_id")
	if !ok {
		return
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), actor, bookingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// ListPayments handles GET /api/v1/payments/
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	payments, err := h.paymentService.ListPayments(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// GetPayment handles GET /api/v1/payments/id/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	payment, err := h.paymentService.GetPayment(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}
