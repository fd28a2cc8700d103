package user

import (
	"context"
	"log/slog"
	"time"
)

// Service manages user profile reads and partial updates.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new profile Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Get retrieves a user's profile.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update to a user's own profile. Only the supplied
// fields change; an empty patch is a no-op that returns the current record.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*User, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return u, nil
	}

	patch.ApplyTo(u)
	u.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", "user_id", id)
	return s.repo.GetByID(ctx, id)
}
