package search

import (
	"context"
	"strings"
	"time"
)

// busyRetryBudget bounds total time spent retrying a transient SQLITE_BUSY
// before giving up (spec §4.4: "transient SQLite busy -> retry with bounded
// backoff up to ~500ms").
const busyRetryBudget = 500 * time.Millisecond

// withBusyRetry runs fn, retrying with doubling backoff while fn's error
// looks like a transient SQLite busy/locked condition and the retry budget
// remains. mattn/go-sqlite3 doesn't expose a typed busy error on every
// release, so this matches driver error text the same way store's upsert
// path does.
func withBusyRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	deadline := time.Now().Add(busyRetryBudget)
	backoff := 10 * time.Millisecond

	for {
		v, err := fn()
		if err == nil || !looksBusy(err) || time.Now().After(deadline) {
			return v, err
		}

		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > busyRetryBudget {
			backoff = busyRetryBudget
		}
	}
}

func looksBusy(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
