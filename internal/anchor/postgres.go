package anchor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/anchor-collective/anchor/internal/geo"
	"github.com/anchor-collective/anchor/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL with PostGIS.
// Locations are stored as geography(Point,4326) so ST_DWithin and ST_Distance
// operate in true great-circle meters on the spheroid.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

const anchorColumns = `
	anchor_id, creator_id, title, description,
	ST_Y(location::geometry) AS latitude, ST_X(location::geometry) AS longitude,
	altitude, status, visibility, unlock_radius,
	max_unlock, current_unlock, activation_time, expiration_time,
	tags, created_at, updated_at
`

// Insert stores a new anchor. Returns ErrAnchorExists on ID collision.
func (r *PostgresRepository) Insert(ctx context.Context, a *Anchor) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "anchors", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO anchors
			(anchor_id, creator_id, title, description, location, altitude,
			 status, visibility, unlock_radius, max_unlock, current_unlock,
			 activation_time, expiration_time, tags, created_at, updated_at)
		VALUES
			($1, $2, $3, $4,
			 ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
			 $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.CreatorID, a.Title, nullString(a.Description),
		a.Location.Lng, a.Location.Lat,
		a.Altitude, string(a.Status), string(a.Visibility), a.UnlockRadius,
		a.MaxUnlock, a.CurrentUnlock,
		a.ActivationTime, a.ExpirationTime,
		pq.Array(a.Tags), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return ErrAnchorExists
		}
		return fmt.Errorf("failed to insert anchor: %w", err)
	}
	return nil
}

// GetByID retrieves an anchor by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (a *Anchor, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "anchors", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT ` + anchorColumns + ` FROM anchors WHERE anchor_id = $1`
	return r.scanAnchor(r.db.QueryRowContext(ctx, query, id))
}

// Update rewrites the mutable fields of an existing anchor in one statement.
// The location is written as a complete point; current_unlock is untouched,
// it only moves through IncrementUnlock.
func (r *PostgresRepository) Update(ctx context.Context, a *Anchor) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "anchors", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query := `
		UPDATE anchors SET
			title = $2,
			description = $3,
			location = ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography,
			altitude = $6,
			status = $7,
			visibility = $8,
			unlock_radius = $9,
			max_unlock = $10,
			activation_time = $11,
			expiration_time = $12,
			tags = $13,
			updated_at = $14
		WHERE anchor_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.Title, nullString(a.Description),
		a.Location.Lng, a.Location.Lat,
		a.Altitude, string(a.Status), string(a.Visibility), a.UnlockRadius,
		a.MaxUnlock, a.ActivationTime, a.ExpirationTime,
		pq.Array(a.Tags), a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update anchor: %w", err)
	}
	return requireRow(res)
}

// Delete hard-deletes an anchor.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "anchors", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM anchors WHERE anchor_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete anchor: %w", err)
	}
	return requireRow(res)
}

// WithinRadius returns every anchor within radiusMeters of center, ordered by
// ascending distance. Distance and containment both come from PostGIS on the
// geography type, so results match the haversine math used elsewhere to
// within the spheroid/sphere difference.
func (r *PostgresRepository) WithinRadius(ctx context.Context, center geo.Point, radiusMeters float64) (results []Nearby, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "anchors", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT ` + anchorColumns + `,
			ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance_m
		FROM anchors
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance_m ASC
	`
	rows, err := r.db.QueryContext(ctx, query, center.Lng, center.Lat, radiusMeters)
	if err != nil {
		return nil, fmt.Errorf("failed to query anchors within radius: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, distance, err := scanAnchorRow(rows, true)
		if err != nil {
			return nil, err
		}
		results = append(results, Nearby{Anchor: a, DistanceMeters: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate anchor rows: %w", err)
	}
	return results, nil
}

// IncrementUnlock issues a single conditional UPDATE so the cap check and the
// increment are one atomic read-modify-write. Two concurrent unlockers near
// the cap cannot both pass the check.
func (r *PostgresRepository) IncrementUnlock(ctx context.Context, id string) (count int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "anchors", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	query := `
		UPDATE anchors
		SET current_unlock = current_unlock + 1
		WHERE anchor_id = $1
		  AND (max_unlock IS NULL OR current_unlock < max_unlock)
		RETURNING current_unlock
	`
	err = r.db.QueryRowContext(ctx, query, id).Scan(&count)
	if err == sql.ErrNoRows {
		// Either the anchor is gone or the cap is reached; distinguish so the
		// unlock engine reports the right reason.
		var exists bool
		checkErr := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM anchors WHERE anchor_id = $1)`, id).Scan(&exists)
		if checkErr != nil {
			return 0, fmt.Errorf("failed to check anchor existence: %w", checkErr)
		}
		if !exists {
			return 0, ErrAnchorNotFound
		}
		return 0, ErrUnlockCapReached
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment unlock counter: %w", err)
	}
	return count, nil
}

// MarkExpired durably sets the anchor's status to EXPIRED.
func (r *PostgresRepository) MarkExpired(ctx context.Context, id string) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "anchors", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx,
		`UPDATE anchors SET status = $2 WHERE anchor_id = $1`, id, string(StatusExpired))
	if err != nil {
		return fmt.Errorf("failed to mark anchor expired: %w", err)
	}
	return requireRow(res)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanAnchor(row rowScanner) (*Anchor, error) {
	a, _, err := scanAnchorRow(row, false)
	return a, err
}

func scanAnchorRow(row rowScanner, withDistance bool) (*Anchor, float64, error) {
	var (
		a           Anchor
		description sql.NullString
		status      string
		visibility  string
		distance    float64
	)

	dest := []any{
		&a.ID, &a.CreatorID, &a.Title, &description,
		&a.Location.Lat, &a.Location.Lng,
		&a.Altitude, &status, &visibility, &a.UnlockRadius,
		&a.MaxUnlock, &a.CurrentUnlock, &a.ActivationTime, &a.ExpirationTime,
		pq.Array(&a.Tags), &a.CreatedAt, &a.UpdatedAt,
	}
	if withDistance {
		dest = append(dest, &distance)
	}

	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, ErrAnchorNotFound
		}
		return nil, 0, fmt.Errorf("failed to scan anchor row: %w", err)
	}

	a.Description = description.String
	a.Status = Status(status)
	a.Visibility = Visibility(visibility)
	return &a, distance, nil
}

// requireRow maps a zero-row UPDATE/DELETE result to ErrAnchorNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrAnchorNotFound
	}
	return nil
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
