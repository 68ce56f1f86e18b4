package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Delay: time.Millisecond}, "submit", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	sentinel := errors.New("unreachable")
	calls := 0
	start := time.Now()
	err := Do(context.Background(), Policy{Attempts: 3, Delay: 10 * time.Millisecond}, "submit", func(context.Context) error {
		calls++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
	// two fixed pauses between three attempts
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{}, "op", func(context.Context) error {
		calls++
		return errors.New("x")
	})
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{Attempts: 5, Delay: time.Hour}, "op", func(context.Context) error {
		calls++
		cancel()
		return errors.New("x")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
