package idempotency

import (
	"log/slog"
	"time"
)

// DefaultExpiry is how long cached responses are replayable. Unlock retries
// older than a day should go through the gates again.
const DefaultExpiry = 24 * time.Hour

// CleanupOldKeys removes records older than expiry and returns how many were
// deleted.
func CleanupOldKeys(repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(expiry)
	if err != nil {
		slog.Error("failed to clean up idempotency records", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.Info("cleaned up idempotency records", "deleted", deleted, "older_than", expiry)
	}

	return deleted, nil
}

// RunPeriodicCleanup runs CleanupOldKeys immediately and then on every tick
// of interval until stopChan is closed. It blocks, so run it in a goroutine.
func RunPeriodicCleanup(repo Repository, interval, expiry time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := CleanupOldKeys(repo, expiry); err != nil {
		slog.Error("initial idempotency cleanup failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if _, err := CleanupOldKeys(repo, expiry); err != nil {
				slog.Error("periodic idempotency cleanup failed", "error", err)
			}
		case <-stopChan:
			return
		}
	}
}
