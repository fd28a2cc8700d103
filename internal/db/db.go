// Package db provides database connection handling for the Anchor API.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostGISRequirement documents that the application requires PostgreSQL with PostGIS.
// PostGIS enables the radius queries behind anchor discovery.
const PostGISRequirement = "PostGIS extension is required for geo queries"

// VersionQuery is the SQL query to verify PostGIS is available.
const VersionQuery = "SELECT PostGIS_Version()"

// Connection pool settings.
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// Open connects to Postgres, configures the pool, and verifies both
// connectivity and PostGIS availability.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxLifetime(connMaxLifetime)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var version string
	if err := conn.QueryRowContext(ctx, VersionQuery).Scan(&version); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", PostGISRequirement, err)
	}

	return conn, nil
}
