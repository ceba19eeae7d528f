package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/events"
	"github.com/loadlink/loadlink-backend/internal/models"
	"github.com/loadlink/loadlink-backend/internal/services"
	"github.com/loadlink/loadlink-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestAPI(t *testing.T) *testAPI {
	gin.SetMode(gin.TestMode)
	logger := quietLogger()
	store := database.NewMemoryStore()
	jwtService := jwt.NewService("test-access-secret", "test-refresh-secret", time.Hour, 24*time.Hour)
	emitter := events.NewEmitter(events.NewLogPublisher(logger), logger)
	ledger := services.NewLedger(logger)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Auth:    NewAuthHandler(services.NewAuthService(store, jwtService, bcrypt.MinCost, logger), logger),
		User:    NewUserHandler(services.NewUserService(store), logger),
		Vehicle: NewVehicleHandler(services.NewVehicleService(store, logger), logger),
		Trip:    NewTripHandler(services.NewTripService(store, ledger, emitter, logger), logger),
		Booking: NewBookingHandler(services.NewBookingService(store, ledger, emitter, logger), logger),
		Payment: NewPaymentHandler(services.NewPaymentService(store, emitter, logger), logger),
		Review:  NewReviewHandler(services.NewReviewService(store, emitter, logger), logger),
		Health:  NewHealthHandler(store, "test"),
	}, jwtService, nil, logger)

	return &testAPI{t: t, router: router}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) decode(w *httptest.ResponseRecorder, v interface{}) {
	a.t.Helper()
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), v))
}

// signup registers a user and returns an access token and the user's id
func (a *testAPI) signup(email string, role models.UserRole) (string, string) {
	a.t.Helper()
	w := a.do("POST", "/api/v1/auth/register", "", gin.H{
		"name":     "Test " + string(role),
		"email":    email,
		"password": "password123",
		"role":     role,
		"phone":    "+919812345678",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do("POST", "/api/v1/auth/login", "", gin.H{"email": email, "password": "password123"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var tokens models.TokenResponse
	a.decode(w, &tokens)
	return tokens.AccessToken, tokens.User.ID.String()
}

type fixture struct {
	carrierToken, carrierID string
	shipperToken, shipperID string
	tripID                  string
}

func (a *testAPI) seed(capacity int) fixture {
	a.t.Helper()
	var f fixture
	f.carrierToken, f.carrierID = a.signup("carrier@example.com", models.RoleCarrier)
	f.shipperToken, f.shipperID = a.signup("shipper@example.com", models.RoleShipper)

	w := a.do("POST", "/api/v1/vehicles/", f.carrierToken, gin.H{
		"type":          "truck",
		"capacity":      capacity,
		"license_plate": "MH12AB1234",
		"rc_number":     "RC-1",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var vehicle models.Vehicle
	a.decode(w, &vehicle)

	w = a.do("POST", "/api/v1/trips/", f.carrierToken, gin.H{
		"vehicle_id":     vehicle.ID,
		"origin":         "Mumbai",
		"destination":    "Pune",
		"departure_date": models.NewDate(time.Now().AddDate(0, 0, 1)),
		"arrival_date":   models.NewDate(time.Now().AddDate(0, 0, 2)),
		"price_per_kg":   2.5,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var trip models.Trip
	a.decode(w, &trip)
	f.tripID = trip.ID.String()
	return f
}

func (a *testAPI) setStatus(token, bookingID string, status models.BookingStatus) *httptest.ResponseRecorder {
	return a.do("PUT", "/api/v1/bookings/"+bookingID, token, gin.H{"status": status})
}

func TestBookingLifecycle(t *testing.T) {
	api := setupTestAPI(t)
	f := api.seed(1000)

	w := api.do("POST", "/api/v1/bookings/", f.shipperToken, gin.H{"trip_id": f.tripID, "load_size": 400})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var booking models.Booking
	api.decode(w, &booking)
	assert.Equal(t, 1000.0, booking.TotalPrice)
	id := booking.ID.String()

	require.Equal(t, http.StatusOK, api.setStatus(f.carrierToken, id, models.BookingStatusAccepted).Code)
	require.Equal(t, http.StatusOK, api.setStatus(f.carrierToken, id, models.BookingStatusFulfilled).Code)

	w = api.do("POST", "/api/v1/payments/"+id, f.shipperToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do("POST", "/api/v1/payments/"+id, f.shipperToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	var errBody ErrorResponse
	api.decode(w, &errBody)
	assert.Equal(t, "ALREADY_PAID", errBody.Code)

	w = api.do("POST", "/api/v1/reviews/", f.shipperToken, gin.H{
		"booking_id": id,
		"to_user_id": f.carrierID,
		"rating":     5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do("GET", "/api/v1/users/"+f.carrierID, f.shipperToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.PublicProfile
	api.decode(w, &profile)
	assert.Equal(t, 5.0, profile.Rating)
	assert.NotContains(t, w.Body.String(), "email")

	require.Equal(t, http.StatusOK, api.setStatus(f.shipperToken, id, models.BookingStatusCompleted).Code)

	w = api.do("GET", "/api/v1/bookings/"+id+"/history", f.carrierToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []models.BookingStatusEvent
	api.decode(w, &history)
	assert.Len(t, history, 5)
}

func TestBookingErrors(t *testing.T) {
	api := setupTestAPI(t)
	f := api.seed(1000)

	w := api.do("POST", "/api/v1/bookings/", f.shipperToken, gin.H{"trip_id": f.tripID, "load_size": 500})
	require.Equal(t, http.StatusCreated, w.Code)
	var booking models.Booking
	api.decode(w, &booking)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{"capacity exceeded", "POST", "/api/v1/bookings/", f.shipperToken,
			gin.H{"trip_id": f.tripID, "load_size": 501}, http.StatusConflict, "CAPACITY_EXCEEDED"},
		{"carrier cannot book", "POST", "/api/v1/bookings/", f.carrierToken,
			gin.H{"trip_id": f.tripID, "load_size": 1}, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},
		{"shipper cannot accept", "PUT", "/api/v1/bookings/" + booking.ID.String(), f.shipperToken,
			gin.H{"status": "accepted"}, http.StatusForbidden, "FORBIDDEN"},
		{"skip to paid", "PUT", "/api/v1/bookings/" + booking.ID.String(), f.carrierToken,
			gin.H{"status": "paid"}, http.StatusConflict, "ILLEGAL_TRANSITION"},
		{"pay before fulfilled", "POST", "/api/v1/payments/" + booking.ID.String(), f.shipperToken,
			nil, http.StatusConflict, "BOOKING_NOT_FULFILLED"},
		{"review before paid", "POST", "/api/v1/reviews/", f.shipperToken,
			gin.H{"booking_id": booking.ID, "to_user_id": f.carrierID, "rating": 4}, http.StatusConflict, "BOOKING_NOT_ELIGIBLE"},
		{"unknown status", "PUT", "/api/v1/bookings/" + booking.ID.String(), f.carrierToken,
			gin.H{"status": "shipped"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed id", "GET", "/api/v1/bookings/not-a-uuid", f.carrierToken,
			nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing booking", "GET", "/api/v1/bookings/00000000-0000-0000-0000-000000000001", f.carrierToken,
			nil, http.StatusNotFound, "NOT_FOUND"},
		{"no token", "GET", "/api/v1/bookings/", "", nil, http.StatusUnauthorized, "MISSING_AUTH_HEADER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			var body ErrorResponse
			api.decode(w, &body)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Detail)
		})
	}

	w = api.setStatus(f.carrierToken, booking.ID.String(), models.BookingStatusRejected)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do("GET", "/api/v1/trips/"+f.tripID, f.shipperToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trip models.Trip
	api.decode(w, &trip)
	assert.Equal(t, 1000, trip.AvailableCapacity)
}

func TestTripBookingsVisibility(t *testing.T) {
	api := setupTestAPI(t)
	f := api.seed(1000)
	otherToken, _ := api.signup("other@example.com", models.RoleShipper)

	require.Equal(t, http.StatusCreated, api.do("POST", "/api/v1/bookings/", f.shipperToken, gin.H{"trip_id": f.tripID, "load_size": 100}).Code)
	require.Equal(t, http.StatusCreated, api.do("POST", "/api/v1/bookings/", otherToken, gin.H{"trip_id": f.tripID, "load_size": 100}).Code)

	var bookings []models.Booking
	w := api.do("GET", "/api/v1/bookings/trip/"+f.tripID, f.carrierToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	api.decode(w, &bookings)
	assert.Len(t, bookings, 2)

	w = api.do("GET", "/api/v1/bookings/trip/"+f.tripID, otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	api.decode(w, &bookings)
	assert.Len(t, bookings, 1)

	w = api.do("GET", "/api/v1/trips/all?origin=mum&min_capacity=900", otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trips []models.Trip
	api.decode(w, &trips)
	assert.Empty(t, trips)
}

func TestAuthErrors(t *testing.T) {
	api := setupTestAPI(t)
	api.signup("carrier@example.com", models.RoleCarrier)

	w := api.do("POST", "/api/v1/auth/register", "", gin.H{
		"name":     "Dup",
		"email":    "carrier@example.com",
		"password": "password123",
		"role":     "carrier",
		"phone":    "+919812345678",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do("POST", "/api/v1/auth/login", "", gin.H{"email": "carrier@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body ErrorResponse
	api.decode(w, &body)
	assert.Equal(t, "INVALID_CREDENTIALS", body.Code)

	w = api.do("POST", "/api/v1/auth/login", "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondError_Internal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/x", nil)

	respondError(c, quietLogger(), errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestHealth(t *testing.T) {
	api := setupTestAPI(t)
	w := api.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
