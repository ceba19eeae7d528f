package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/loadlink/loadlink-backend/internal/database"
	"github.com/loadlink/loadlink-backend/internal/models"
)

// UserService serves user profiles
type UserService struct {
	store database.Store
}

// NewUserService creates a new user service
func NewUserService(store database.Store) *UserService {
	return &UserService{store: store}
}

// GetMe returns the actor's full profile
func (s *UserService) GetMe(ctx context.Context, actor models.Actor) (*models.User, error) {
	return s.store.GetUserByID(ctx, actor.UserID)
}

// GetProfile returns another user's public profile
func (s *UserService) GetProfile(ctx context.Context, id uuid.UUID) (*models.PublicProfile, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := user.Public()
	return &profile, nil
}

// GetShipper returns the public profile of a shipper
func (s *UserService) GetShipper(ctx context.Context, id uuid.UUID) (*models.PublicProfile, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleShipper {
		return nil, fmt.Errorf("shipper %w", models.ErrNotFound)
	}
	profile := user.Public()
	return &profile, nil
}
