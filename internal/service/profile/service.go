package profile

import (
	"context"
	"errors"
	"strings"

	"log/slog"

	"github.com/stepflow/signup-api/internal/domain"
	"github.com/stepflow/signup-api/internal/repository"
)

var (
	ErrUserNotFound  = errors.New("profile: user not found")
	ErrMissingFields = errors.New("profile: missing fields")
)

// Service applies incremental profile-field updates. Each field group is an
// independent store update; there is no cross-field transaction.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger) Service {
	return Service{users: users, logger: logger}
}

// SaveName merges first and last name into the record found by email.
func (s Service) SaveName(ctx context.Context, email, firstName, lastName string) (*domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrMissingFields
	}
	user, err := s.users.UpdateName(ctx, email, firstName, lastName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.logger.Info("name saved", "user_id", user.ID)
	return user, nil
}

// SaveZipCode merges the ZIP code into the record found by email. The value
// is stored as given; format validation stays with the client for now.
func (s Service) SaveZipCode(ctx context.Context, email, zipCode string) (*domain.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrMissingFields
	}
	user, err := s.users.UpdateZipCode(ctx, email, zipCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	s.logger.Info("zip code saved", "user_id", user.ID)
	return user, nil
}
