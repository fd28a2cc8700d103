package user

import (
	"context"
	"errors"
	"sync"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrEmailTaken    = errors.New("email is already in use")
	ErrUsernameTaken = errors.New("username is already in use")
)

// Repository defines the interface for user profile data operations.
type Repository interface {
	// Insert stores a new user. Returns ErrUserExists on ID collision and
	// ErrEmailTaken/ErrUsernameTaken on uniqueness violations.
	Insert(ctx context.Context, u *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*User, error)

	// Update rewrites the mutable profile fields. Returns ErrEmailTaken or
	// ErrUsernameTaken when the new value collides with another user.
	Update(ctx context.Context, u *User) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; used for testing and development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewInMemoryRepository creates a new in-memory user repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users: make(map[string]*User),
	}
}

// Insert stores a new user.
func (r *InMemoryRepository) Insert(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[u.ID]; exists {
		return ErrUserExists
	}
	if err := r.checkUnique(u); err != nil {
		return err
	}
	r.users[u.ID] = u.Clone()
	return nil
}

// GetByID retrieves a user by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.Clone(), nil
}

// Update rewrites the mutable profile fields.
func (r *InMemoryRepository) Update(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	if err := r.checkUnique(u); err != nil {
		return err
	}
	r.users[u.ID] = u.Clone()
	return nil
}

// checkUnique enforces email and username uniqueness across other users.
// Caller must hold the write lock.
func (r *InMemoryRepository) checkUnique(u *User) error {
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		if other.Email == u.Email {
			return ErrEmailTaken
		}
		if other.Username == u.Username {
			return ErrUsernameTaken
		}
	}
	return nil
}
