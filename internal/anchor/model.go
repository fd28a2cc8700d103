// Package anchor provides the Anchor domain model, repositories, and the
// lifecycle, unlock, and discovery services built on top of them.
package anchor

import (
	"errors"
	"time"

	"github.com/anchor-collective/anchor/internal/geo"
)

// Title and unlock radius constraints.
const (
	MaxTitleLength      = 255
	MinUnlockRadius     = 10
	MaxUnlockRadius     = 100
	DefaultUnlockRadius = 50
)

// Validation errors for anchor fields.
var (
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title must not exceed 255 characters")
	ErrInvalidVisibility  = errors.New("visibility must be PUBLIC, PRIVATE, or CIRCLE_ONLY")
	ErrInvalidStatus      = errors.New("status must be ACTIVE, EXPIRED, LOCKED, or FLAGGED")
	ErrInvalidRadius      = errors.New("unlock_radius must be between 10 and 100 meters")
	ErrInvalidMaxUnlock   = errors.New("max_unlock must be positive")
)

// Status is the lifecycle state of an anchor.
// ACTIVE -> EXPIRED happens automatically when an unlock attempt crosses the
// expiration window. LOCKED and FLAGGED are set externally by moderation.
type Status string

// Valid anchor statuses.
const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
	StatusLocked  Status = "LOCKED"
	StatusFlagged Status = "FLAGGED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusExpired, StatusLocked, StatusFlagged:
		return true
	}
	return false
}

// Visibility controls who can discover an anchor.
type Visibility string

// Valid anchor visibilities.
const (
	VisibilityPublic     Visibility = "PUBLIC"
	VisibilityPrivate    Visibility = "PRIVATE"
	VisibilityCircleOnly Visibility = "CIRCLE_ONLY"
)

// Valid reports whether v is one of the known visibilities.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityCircleOnly:
		return true
	}
	return false
}

// Anchor is a persistent, geolocated point of interest with unlock rules.
// ID and CreatorID never change after creation. CurrentUnlock only moves
// upward, via the repository's conditional increment.
type Anchor struct {
	ID          string    `json:"anchor_id"`
	CreatorID   string    `json:"creator_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    geo.Point `json:"location"`
	Altitude    *float64  `json:"altitude,omitempty"`

	Status     Status     `json:"status"`
	Visibility Visibility `json:"visibility"`

	// UnlockRadius is advisory: it is validated and stored for clients but
	// the unlock path does not check the caller's position against it.
	UnlockRadius  int  `json:"unlock_radius"`
	MaxUnlock     *int `json:"max_unlock,omitempty"`
	CurrentUnlock int  `json:"current_unlock"`

	ActivationTime *time.Time `json:"activation_time,omitempty"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`

	Tags []string `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the anchor so callers can hand copies out of a
// repository without sharing mutable state.
func (a *Anchor) Clone() *Anchor {
	c := *a
	if a.Altitude != nil {
		alt := *a.Altitude
		c.Altitude = &alt
	}
	if a.MaxUnlock != nil {
		m := *a.MaxUnlock
		c.MaxUnlock = &m
	}
	if a.ActivationTime != nil {
		at := *a.ActivationTime
		c.ActivationTime = &at
	}
	if a.ExpirationTime != nil {
		et := *a.ExpirationTime
		c.ExpirationTime = &et
	}
	if a.Tags != nil {
		c.Tags = append([]string(nil), a.Tags...)
	}
	return &c
}
