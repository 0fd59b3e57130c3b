// Package retry runs transient operations with exponential backoff.
// It is used for connection-level recovery only; workflow writes are
// never retried here, since the store contract makes duplicate
// snapshots harmless but not duplicate writes.
package retry

import (
	"context"
	"time"
)

// DoWithRetry calls fn until it succeeds, the context ends, or attempts
// run out. The wait doubles after each failure, starting at baseDelay.
// When every attempt fails the last error is returned.
func DoWithRetry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if last = fn(); last == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay << attempt):
		}
	}
	return last
}
