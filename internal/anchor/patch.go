package anchor

import (
	"time"

	"github.com/anchor-collective/anchor/internal/geo"
)

// Patch describes a partial update to an anchor. Nil fields are left
// untouched; Tags uses nil-vs-empty to distinguish "not supplied" from
// "clear the list".
type Patch struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	Altitude       *float64   `json:"altitude,omitempty"`
	Visibility     *string    `json:"visibility,omitempty"`
	UnlockRadius   *int       `json:"unlock_radius,omitempty"`
	MaxUnlock      *int       `json:"max_unlock,omitempty"`
	ActivationTime *time.Time `json:"activation_time,omitempty"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

// Empty reports whether the patch carries no fields at all.
func (p *Patch) Empty() bool {
	return p.Title == nil && p.Description == nil &&
		p.Latitude == nil && p.Longitude == nil && p.Altitude == nil &&
		p.Visibility == nil && p.UnlockRadius == nil && p.MaxUnlock == nil &&
		p.ActivationTime == nil && p.ExpirationTime == nil && p.Tags == nil
}

// Validate checks every supplied field against the anchor field constraints.
func (p *Patch) Validate() error {
	if p.Title != nil {
		if *p.Title == "" {
			return ErrTitleRequired
		}
		if len(*p.Title) > MaxTitleLength {
			return ErrTitleTooLong
		}
	}
	if p.Visibility != nil && !Visibility(*p.Visibility).Valid() {
		return ErrInvalidVisibility
	}
	if p.Latitude != nil {
		if *p.Latitude < geo.MinLatitude || *p.Latitude > geo.MaxLatitude {
			return geo.ErrLatitudeOutOfRange
		}
	}
	if p.Longitude != nil {
		if *p.Longitude < geo.MinLongitude || *p.Longitude > geo.MaxLongitude {
			return geo.ErrLongitudeOutOfRange
		}
	}
	if p.UnlockRadius != nil {
		if *p.UnlockRadius < MinUnlockRadius || *p.UnlockRadius > MaxUnlockRadius {
			return ErrInvalidRadius
		}
	}
	if p.MaxUnlock != nil && *p.MaxUnlock <= 0 {
		return ErrInvalidMaxUnlock
	}
	return nil
}

// ApplyTo merges the patch into a. The location is always written as an
// atomic pair: when only one of latitude/longitude is supplied, the other
// half is read from the current stored value and recombined, so a
// half-updated point is never produced.
func (p *Patch) ApplyTo(a *Anchor) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Latitude != nil || p.Longitude != nil {
		loc := a.Location
		if p.Latitude != nil {
			loc.Lat = *p.Latitude
		}
		if p.Longitude != nil {
			loc.Lng = *p.Longitude
		}
		a.Location = loc
	}
	if p.Altitude != nil {
		alt := *p.Altitude
		a.Altitude = &alt
	}
	if p.Visibility != nil {
		a.Visibility = Visibility(*p.Visibility)
	}
	if p.UnlockRadius != nil {
		a.UnlockRadius = *p.UnlockRadius
	}
	if p.MaxUnlock != nil {
		m := *p.MaxUnlock
		a.MaxUnlock = &m
	}
	if p.ActivationTime != nil {
		at := *p.ActivationTime
		a.ActivationTime = &at
	}
	if p.ExpirationTime != nil {
		et := *p.ExpirationTime
		a.ExpirationTime = &et
	}
	if p.Tags != nil {
		a.Tags = append([]string(nil), p.Tags...)
	}
}
