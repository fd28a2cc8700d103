package anchor

import (
	"context"
	"log/slog"
	"sort"

	"github.com/anchor-collective/anchor/internal/geo"
)

// Sort modes for discovery queries. Anything other than SortByDistance falls
// back to recency ordering.
const (
	SortByDistance  = "distance"
	SortByCreatedAt = "created_at"
)

// DefaultRadiusKm is the discovery radius applied when the query leaves it
// unset.
const DefaultRadiusKm = 5.0

// NearbyQuery describes a proximity discovery request. Visibility and Status
// are equality filters; empty string means no filter, any other value must be
// a valid enum member.
type NearbyQuery struct {
	Center     geo.Point
	RadiusKm   float64
	Visibility string
	Status     string
	SortBy     string
}

// Discovery answers radius-bounded anchor queries with filtering and
// ordering.
type Discovery struct {
	repo    Repository
	logger  *slog.Logger
	metrics *Metrics
}

// NewDiscovery creates a new Discovery service. metrics may be nil.
func NewDiscovery(repo Repository, logger *slog.Logger, metrics *Metrics) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
	}
}

// Nearby returns the anchors within the query radius, filtered and ordered.
// A query that matches nothing returns an empty slice, not an error.
// Distances drive the radius bound and the default ordering but are not part
// of the result.
func (d *Discovery) Nearby(ctx context.Context, q NearbyQuery) ([]*Anchor, error) {
	if err := q.Center.Validate(); err != nil {
		return nil, err
	}
	if q.Visibility != "" && !Visibility(q.Visibility).Valid() {
		return nil, ErrInvalidVisibility
	}
	if q.Status != "" && !Status(q.Status).Valid() {
		return nil, ErrInvalidStatus
	}

	radiusKm := q.RadiusKm
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}

	matches, err := d.repo.WithinRadius(ctx, q.Center, radiusKm*1000)
	if err != nil {
		return nil, err
	}

	filtered := matches[:0]
	for _, m := range matches {
		if q.Visibility != "" && m.Anchor.Visibility != Visibility(q.Visibility) {
			continue
		}
		if q.Status != "" && m.Anchor.Status != Status(q.Status) {
			continue
		}
		filtered = append(filtered, m)
	}

	switch q.SortBy {
	case SortByDistance, "":
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].DistanceMeters < filtered[j].DistanceMeters
		})
	default:
		// Recency ordering: newest first, ID as the stable tie-breaker.
		sort.SliceStable(filtered, func(i, j int) bool {
			a, b := filtered[i].Anchor, filtered[j].Anchor
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		})
	}

	results := make([]*Anchor, len(filtered))
	for i, m := range filtered {
		results[i] = m.Anchor
	}

	if d.metrics != nil {
		d.metrics.IncNearbyQueries()
	}

	// Log the query center as a coarse geohash cell, not raw coordinates.
	d.logger.Debug("nearby query",
		"cell", geo.Encode(q.Center.Lat, q.Center.Lng, 5),
		"radius_km", radiusKm,
		"matches", len(results))

	return results, nil
}
