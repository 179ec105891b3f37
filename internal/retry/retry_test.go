package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		RateLimitWait: 5 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("boom")
	calls := 0
	err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, sentinel)
}

func TestDo_AttemptNumbersArePassed(t *testing.T) {
	var seen []int
	_ = Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		seen = append(seen, attempt)
		return errors.New("always")
	})
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestDo_RateLimitAddsExtraWait(t *testing.T) {
	rateLimited := errors.New("rate limited")
	cfg := &Config{
		MaxAttempts:   2,
		BaseDelay:     time.Millisecond,
		RateLimitWait: 50 * time.Millisecond,
		IsRateLimited: func(err error) bool { return errors.Is(err, rateLimited) },
	}

	start := time.Now()
	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		if calls == 1 {
			return rateLimited
		}
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("no such thing")
	cfg := fastConfig()
	cfg.IsPermanent = func(err error) bool { return errors.Is(err, permanent) }

	calls := 0
	err := Do(context.Background(), cfg, func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxAttempts: 3, BaseDelay: time.Minute}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		return errors.New("always")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelay_Doubles(t *testing.T) {
	cfg := &Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	assert.Equal(t, time.Second, backoffDelay(cfg, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(cfg, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(cfg, 3))
	assert.Equal(t, 5*time.Second, backoffDelay(cfg, 4)) // capped
}
