// Package retry runs an operation a bounded number of times with a fixed pause
// between attempts.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
)

// Policy describes how often and how far apart an operation is retried.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Do calls fn until it succeeds, the attempts are exhausted or ctx is done.
// The returned error wraps the last failure.
func Do(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	// Factor 1 keeps every pause at Delay.
	b := &backoff.Backoff{Min: p.Delay, Max: p.Delay, Factor: 1}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		wait := b.Duration()
		slog.Warn("Attempt failed, retrying", "op", op, "attempt", attempt, "of", attempts, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}
