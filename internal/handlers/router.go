package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/middleware"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/loadlink/loadlink-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth    *AuthHandler
	User    *UserHandler
	Vehicle *VehicleHandler
	Trip    *TripHandler
	Booking *BookingHandler
	Payment *PaymentHandler
	Review  *ReviewHandler
	Health  *HealthHandler
}

// RegisterRoutes mounts the API under /api/v1 and the health check at
// /health. limiter may be nil.
func RegisterRoutes(router *gin.Engine, h Handlers, jwtService *jwt.Service, limiter *services.RateLimitService, logger *logrus.Logger) {
	router.GET("/health", h.Health.Health)

	rateLimit := middleware.RateLimit(limiter)
	auth := middleware.AuthMiddleware(jwtService, logger)
	carrierOnly := middleware.RequireRole(models.RoleCarrier)
	shipperOnly := middleware.RequireRole(models.RoleShipper)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth", rateLimit)
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	users := v1.Group("/users", auth)
	{
		users.GET("/me", h.User.GetMe)
		users.GET("/shipper/:id", h.User.GetShipper)
		users.GET("/:id", h.User.GetUser)
	}

	vehicles := v1.Group("/vehicles", auth, carrierOnly)
	{
		vehicles.POST("/", h.Vehicle.CreateVehicle)
		vehicles.GET("/", h.Vehicle.ListVehicles)
		vehicles.GET("/:id", h.Vehicle.GetVehicle)
		vehicles.PUT("/:id", h.Vehicle.UpdateVehicle)
		vehicles.DELETE("/:id", h.Vehicle.DeleteVehicle)
	}

	trips := v1.Group("/trips", auth)
	{
		trips.POST("/", carrierOnly, h.Trip.CreateTrip)
		trips.GET("/all", h.Trip.ListActiveTrips)
		trips.GET("/my", carrierOnly, h.Trip.ListMyTrips)
		trips.GET("/:id", h.Trip.GetTrip)
		trips.PUT("/:id", carrierOnly, h.Trip.UpdateTrip)
		trips.DELETE("/:id", carrierOnly, h.Trip.DeleteTrip)
	}

	bookings := v1.Group("/bookings", auth)
	{
		bookings.POST("/", shipperOnly, rateLimit, h.Booking.CreateBooking)
		bookings.GET("/", h.Booking.ListBookings)
		bookings.GET("/trip/:trip_id", h.Booking.ListTripBookings)
		bookings.GET("/:id", h.Booking.GetBooking)
		bookings.GET("/:id/history", h.Booking.History)
		bookings.PUT("/:id", h.Booking.UpdateBooking)
	}

	payments := v1.Group("/payments", auth)
	{
		payments.POST("/:booking_id", shipperOnly, h.Payment.CreatePayment)
		payments.GET("/", h.Payment.ListPayments)
		payments.GET("/id/:id", h.Payment.GetPayment)
	}

	reviews := v1.Group("/reviews", auth)
	{
		reviews.POST("/", h.Review.CreateReview)
		reviews.GET("/", h.Review.ListReviews)
		reviews.GET("/:id", h.Review.GetReview)
	}
}
