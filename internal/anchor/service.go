package anchor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anchor-collective/anchor/internal/geo"
)

// ErrNotCreator is returned when a caller tries to mutate an anchor they do
// not own.
var ErrNotCreator = errors.New("only the creator may modify this anchor")

// CreateInput carries the fields for a new anchor. Visibility is required;
// UnlockRadius defaults to DefaultUnlockRadius when nil.
type CreateInput struct {
	Title          string
	Description    string
	Latitude       float64
	Longitude      float64
	Altitude       *float64
	Visibility     string
	UnlockRadius   *int
	MaxUnlock      *int
	ActivationTime *time.Time
	ExpirationTime *time.Time
	Tags           []string
}

// Validate checks the input against the anchor field constraints.
func (in *CreateInput) Validate() error {
	if in.Title == "" {
		return ErrTitleRequired
	}
	if len(in.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if !Visibility(in.Visibility).Valid() {
		return ErrInvalidVisibility
	}
	if err := (geo.Point{Lat: in.Latitude, Lng: in.Longitude}).Validate(); err != nil {
		return err
	}
	if in.UnlockRadius != nil {
		if *in.UnlockRadius < MinUnlockRadius || *in.UnlockRadius > MaxUnlockRadius {
			return ErrInvalidRadius
		}
	}
	if in.MaxUnlock != nil && *in.MaxUnlock <= 0 {
		return ErrInvalidMaxUnlock
	}
	return nil
}

// Service manages the anchor lifecycle: creation, creator-only partial
// updates, and creator-only deletion.
type Service struct {
	repo    Repository
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewService creates a new lifecycle Service. metrics may be nil.
func NewService(repo Repository, logger *slog.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Create validates the input, generates a new anchor ID, and persists the
// anchor with status ACTIVE and a zero unlock counter.
func (s *Service) Create(ctx context.Context, creatorID string, in CreateInput) (*Anchor, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	radius := DefaultUnlockRadius
	if in.UnlockRadius != nil {
		radius = *in.UnlockRadius
	}

	now := s.now()
	a := &Anchor{
		ID:             uuid.New().String(),
		CreatorID:      creatorID,
		Title:          in.Title,
		Description:    in.Description,
		Location:       geo.Point{Lat: in.Latitude, Lng: in.Longitude},
		Altitude:       in.Altitude,
		Status:         StatusActive,
		Visibility:     Visibility(in.Visibility),
		UnlockRadius:   radius,
		MaxUnlock:      in.MaxUnlock,
		CurrentUnlock:  0,
		ActivationTime: in.ActivationTime,
		ExpirationTime: in.ExpirationTime,
		Tags:           in.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, a); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncAnchorsCreated()
	}
	s.logger.Info("anchor created", "anchor_id", a.ID, "creator_id", creatorID)

	return s.repo.GetByID(ctx, a.ID)
}

// Get retrieves a single anchor.
func (s *Service) Get(ctx context.Context, id string) (*Anchor, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update to an anchor. Only the creator may update;
// an empty patch is a no-op that still returns the current record.
func (s *Service) Update(ctx context.Context, id, callerID string, patch Patch) (*Anchor, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.CreatorID != callerID {
		return nil, ErrNotCreator
	}
	if patch.Empty() {
		return a, nil
	}

	patch.ApplyTo(a)
	a.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete hard-deletes an anchor. Only the creator may delete.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.CreatorID != callerID {
		return ErrNotCreator
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("anchor deleted", "anchor_id", id, "creator_id", callerID)
	return nil
}
