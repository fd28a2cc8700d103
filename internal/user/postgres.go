package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/anchor-collective/anchor/internal/tracing"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

const userColumns = `id, username, email, display_name, bio, avatar_url, created_at, updated_at`

// Insert stores a new user.
func (r *PostgresRepository) Insert(ctx context.Context, u *User) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO users (id, username, email, display_name, bio, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email,
		nullString(u.DisplayName), nullString(u.Bio), nullString(u.AvatarURL),
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (_ *User, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u User
	var displayName, bio, avatarURL sql.NullString
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Email,
		&displayName, &bio, &avatarURL,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.DisplayName = displayName.String
	u.Bio = bio.String
	u.AvatarURL = avatarURL.String
	return &u, nil
}

// Update rewrites the mutable profile fields.
func (r *PostgresRepository) Update(ctx context.Context, u *User) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "users", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query := `
		UPDATE users
		SET username = $2, email = $3, display_name = $4, bio = $5,
		    avatar_url = $6, updated_at = $7
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Email,
		nullString(u.DisplayName), nullString(u.Bio), nullString(u.AvatarURL),
		u.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// mapUniqueViolation translates a Postgres unique_violation into the matching
// domain error, using the constraint name to tell email and username apart.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch {
	case strings.Contains(pqErr.Constraint, "email"):
		return ErrEmailTaken
	case strings.Contains(pqErr.Constraint, "username"):
		return ErrUsernameTaken
	default:
		return ErrUserExists
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
