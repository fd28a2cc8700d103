package anchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anchor-collective/anchor/internal/tracing"
)

// Unlock gating errors, in the order the checks run. Each maps to a 403 with
// its message as the reason; the first failing check wins.
var (
	ErrNotActive     = errors.New("anchor is not active")
	ErrNotYetActive  = errors.New("anchor is not yet active")
	ErrExpired       = errors.New("anchor has expired")
	ErrMaxUnlocksHit = errors.New("anchor has reached its maximum number of unlocks")
)

// UnlockResult reports a successful unlock.
type UnlockResult struct {
	AnchorID      string `json:"anchor_id"`
	CurrentUnlock int    `json:"current_unlock"`
}

// UnlockEngine evaluates the unlock state machine for a single attempt:
// existence, ACTIVE status, activation window, expiration window, then the
// unlock cap. Only the final counter increment and the lazy expiry marking
// mutate state.
type UnlockEngine struct {
	repo    Repository
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewUnlockEngine creates a new UnlockEngine. metrics may be nil.
func NewUnlockEngine(repo Repository, logger *slog.Logger, metrics *Metrics) *UnlockEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnlockEngine{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Unlock runs the gating checks in strict order and, when they all pass,
// atomically increments the anchor's unlock counter.
//
// Expiration is checked before the cap, so an anchor that is both past its
// window and at its cap always reports expiry. Crossing the expiration window
// is the one failure path with a side effect: the anchor's status is durably
// set to EXPIRED so future reads see it without re-evaluating time. If that
// persist fails the attempt reports a transient error, not a Forbidden.
func (e *UnlockEngine) Unlock(ctx context.Context, id string) (_ *UnlockResult, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "evaluate_unlock_gates")
	defer func() { endSpan(err) }()

	a, err := e.repo.GetByID(ctx, id)
	if err != nil {
		e.observe("not_found")
		return nil, err
	}

	if a.Status != StatusActive {
		e.observe("not_active")
		return nil, ErrNotActive
	}

	now := e.now()
	if a.ActivationTime != nil && now.Before(*a.ActivationTime) {
		e.observe("not_yet_active")
		return nil, ErrNotYetActive
	}

	if a.ExpirationTime != nil && now.After(*a.ExpirationTime) {
		if err := e.repo.MarkExpired(ctx, id); err != nil {
			e.observe("error")
			return nil, fmt.Errorf("failed to persist expiry for anchor %s: %w", id, err)
		}
		e.logger.Info("anchor expired on unlock attempt", "anchor_id", id)
		e.observe("expired")
		return nil, ErrExpired
	}

	if a.MaxUnlock != nil && a.CurrentUnlock >= *a.MaxUnlock {
		e.observe("cap_reached")
		return nil, ErrMaxUnlocksHit
	}

	count, err := e.repo.IncrementUnlock(ctx, id)
	if err != nil {
		// A concurrent unlocker may have taken the last slot between the
		// read above and the conditional increment.
		if errors.Is(err, ErrUnlockCapReached) {
			e.observe("cap_reached")
			return nil, ErrMaxUnlocksHit
		}
		e.observe("error")
		return nil, err
	}

	e.observe("success")
	return &UnlockResult{AnchorID: id, CurrentUnlock: count}, nil
}

func (e *UnlockEngine) observe(outcome string) {
	if e.metrics != nil {
		e.metrics.IncUnlockAttempts(outcome)
	}
}
