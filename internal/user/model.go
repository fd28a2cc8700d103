package user

import (
	"errors"
	"time"

	"github.com/anchor-collective/anchor/internal/validate"
)

// Field constraints for user profiles.
const (
	MaxUsernameLength    = 50
	MaxDisplayNameLength = 100
	MaxBioLength         = 500
)

// Validation errors for user profile fields.
var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrUsernameTooLong    = errors.New("username exceeds maximum length")
	ErrInvalidUsername    = errors.New("username may only contain letters, digits, dash, underscore, and period")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmail       = errors.New("email is not valid")
	ErrDisplayNameTooLong = errors.New("display name exceeds maximum length")
	ErrBioTooLong         = errors.New("bio exceeds maximum length")
	ErrInvalidAvatarURL   = errors.New("avatar URL is not valid")
)

// User is a profile record. Identity itself (tokens, sessions) lives at the
// HTTP boundary; this is only the profile data behind it.
type User struct {
	ID          string    `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a copy of the user.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Patch describes a partial profile update. Nil fields are left untouched.
type Patch struct {
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p *Patch) Empty() bool {
	return p.Username == nil && p.Email == nil &&
		p.DisplayName == nil && p.Bio == nil && p.AvatarURL == nil
}

// Validate checks every supplied field against the profile constraints.
func (p *Patch) Validate() error {
	if p.Username != nil {
		if _, err := validate.Username(*p.Username); err != nil {
			switch {
			case errors.Is(err, validate.ErrEmpty):
				return ErrUsernameRequired
			case errors.Is(err, validate.ErrStringTooLong):
				return ErrUsernameTooLong
			default:
				return ErrInvalidUsername
			}
		}
	}
	if p.Email != nil {
		if *p.Email == "" {
			return ErrEmailRequired
		}
		if _, err := validate.Email(*p.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	if p.DisplayName != nil && len(*p.DisplayName) > MaxDisplayNameLength {
		return ErrDisplayNameTooLong
	}
	if p.Bio != nil && len(*p.Bio) > MaxBioLength {
		return ErrBioTooLong
	}
	if p.AvatarURL != nil && *p.AvatarURL != "" {
		if _, err := validate.AvatarURL(*p.AvatarURL); err != nil {
			return ErrInvalidAvatarURL
		}
	}
	return nil
}

// ApplyTo merges the patch into u. The email is stored in its normalized
// (lowercased, trimmed) form.
func (p *Patch) ApplyTo(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		if normalized, err := validate.Email(*p.Email); err == nil {
			u.Email = normalized
		}
	}
	if p.DisplayName != nil {
		u.DisplayName = *p.DisplayName
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
}
