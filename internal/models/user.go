package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRole is the marketplace role of a user
type UserRole string

const (
	RoleShipper UserRole = "shipper"
	RoleCarrier UserRole = "carrier"
	// RoleSystem is recorded on status events raised by background jobs
	RoleSystem UserRole = "system"
)

// IsValid reports whether r is a role a user can register with
func (r UserRole) IsValid() bool {
	return r == RoleShipper || r == RoleCarrier
}

// User represents a registered shipper or carrier
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Role         UserRole  `json:"role" db:"role"`
	Phone        string    `json:"phone" db:"phone"`
	Rating       float64   `json:"rating" db:"rating"`
	ReviewCount  int       `json:"review_count" db:"review_count"`
	JoinedDate   Date      `json:"joined_date" db:"joined_date"`
	Avatar       *string   `json:"avatar,omitempty" db:"avatar"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"-" db:"created_at"`
}

// PublicProfile is the view of a user shown to other parties
type PublicProfile struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Role        UserRole  `json:"role"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	JoinedDate  Date      `json:"joined_date"`
	Avatar      *string   `json:"avatar,omitempty"`
}

// Public strips contact details from the user
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Name:        u.Name,
		Role:        u.Role,
		Rating:      u.Rating,
		ReviewCount: u.ReviewCount,
		JoinedDate:  u.JoinedDate,
		Avatar:      u.Avatar,
	}
}

// RegisterRequest represents a sign-up request
type RegisterRequest struct {
	Name     string   `json:"name" binding:"required,max=100"`
	Email    string   `json:"email" binding:"required,email,max=150"`
	Password string   `json:"password" binding:"required,min=8,max=64"`
	Role     UserRole `json:"role" binding:"required"`
	Phone    string   `json:"phone" binding:"required"`
}

// Normalize trims and lower-cases the identifying fields
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

// NormalizeEmail is the form emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenResponse is returned by login and refresh
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
}

// Actor identifies who performs an operation. IP and UserAgent are only
// used for the booking status audit trail.
type Actor struct {
	UserID    uuid.UUID
	Role      UserRole
	IP        string
	UserAgent string
}

// SystemActor is the actor used by background jobs
func SystemActor() Actor {
	return Actor{Role: RoleSystem}
}
