package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	"github.com/Azaz-Gori07/ChatApp/internal/repository"
	apperrors "github.com/Azaz-Gori07/ChatApp/pkg/errors"
	"github.com/Azaz-Gori07/ChatApp/pkg/pagination"
)

// UserService implements profile and user directory operations.
type UserService struct {
	userRepo repository.UserRepository
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(userRepo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// UpdateProfileInput holds the parameters for updating a user's profile.
type UpdateProfileInput struct {
	Name      *string
	AvatarURL *string
}

// GetProfile retrieves a user by their ID.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return user, nil
}

// UpdateProfile updates the caller's name and/or avatar URL.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for update: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name must not be empty")
		}
		user.Name = name
	}

	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user profile updated",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// ListUsers returns a page of public user profiles, newest first.
func (s *UserService) ListUsers(ctx context.Context, params pagination.Params) (pagination.Result[domain.PublicProfile], error) {
	users, total, err := s.userRepo.List(ctx, params)
	if err != nil {
		return pagination.Result[domain.PublicProfile]{}, fmt.Errorf("list users: %w", err)
	}

	return pagination.NewResult(publicProfiles(users), total, params), nil
}

// SearchUsers returns users whose name contains q, case-insensitive.
func (s *UserService) SearchUsers(ctx context.Context, q string, params pagination.Params) (pagination.Result[domain.PublicProfile], error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return pagination.Result[domain.PublicProfile]{}, apperrors.InvalidInput("search query is required")
	}

	users, total, err := s.userRepo.Search(ctx, q, params)
	if err != nil {
		return pagination.Result[domain.PublicProfile]{}, fmt.Errorf("search users: %w", err)
	}

	return pagination.NewResult(publicProfiles(users), total, params), nil
}

func publicProfiles(users []domain.User) []domain.PublicProfile {
	profiles := make([]domain.PublicProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Public())
	}
	return profiles
}
