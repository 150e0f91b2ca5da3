package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/repository"
)

// Service manages accounts. Authentication happens at the gateway, so
// here a user is just an id with a username.
type Service struct {
	userRepo repository.UserRepo
}

func NewService(userRepo repository.UserRepo) *Service {
	return &Service{userRepo: userRepo}
}

func (s *Service) Register(ctx context.Context, username string) (models.User, error) {
	user, err := s.userRepo.CreateUser(ctx, username)
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// GetUser returns the user by id
// Returns apperrors.ErrUserNotFound if user not found
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}
