// Package health provides readiness checks for external dependencies.
package health

import (
	"context"
	"database/sql"
)

// DBChecker reports whether the anchor database is reachable.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database. The caller's context bounds the wait.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
