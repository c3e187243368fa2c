package services

import (
	"context"
	"fmt"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/repository"
)

type UserService struct {
	users    *repository.UserRepository
	tracking *repository.TrackingRepository
}

func NewUserService(users *repository.UserRepository, tracking *repository.TrackingRepository) *UserService {
	return &UserService{users: users, tracking: tracking}
}

// TelegramOwnerID is the owner id of a chat user
func TelegramOwnerID(telegramID int64) string {
	return fmt.Sprintf("tg%d", telegramID)
}

func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*domain.User, error) {
	name := firstName
	if lastName != "" {
		name += " " + lastName
	}
	if name == "" {
		name = username
	}
	user, err := s.users.GetOrCreate(ctx, TelegramOwnerID(telegramID), telegramID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, ownerID string) (*domain.User, error) {
	user, err := s.users.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Tracking returns the owner's sync watermarks
func (s *UserService) Tracking(ctx context.Context, ownerID string) (domain.Tracking, error) {
	t, err := s.tracking.Get(ctx, ownerID)
	if err != nil {
		return t, fmt.Errorf("failed to get tracking: %w", err)
	}
	return t, nil
}

// MarkTracking sets one of the owner's sync watermarks
func (s *UserService) MarkTracking(ctx context.Context, ownerID string, field domain.TrackingField, at time.Time) error {
	if err := s.tracking.Mark(ctx, ownerID, field, at); err != nil {
		return fmt.Errorf("failed to update tracking: %w", err)
	}
	return nil
}
