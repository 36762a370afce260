package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForReturnsImmediatelyWhenConditionAlreadyHolds(t *testing.T) {
	start := time.Now()
	err := For(context.Background(), Options{Interval: 50 * time.Millisecond, Timeout: time.Second}, func(context.Context) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestForTimesOutWithDefiniteOutcome(t *testing.T) {
	err := For(context.Background(), Options{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond}, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestForPropagatesConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := For(context.Background(), Options{Interval: 5 * time.Millisecond, Timeout: time.Second}, func(context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestForHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := For(ctx, Options{Interval: 5 * time.Millisecond, Timeout: time.Second}, func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForSucceedsOnLaterProbe(t *testing.T) {
	calls := 0
	err := For(context.Background(), Options{Interval: 5 * time.Millisecond, Timeout: time.Second}, func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilReturnsAcceptedValue(t *testing.T) {
	n := 0
	got, err := Until(context.Background(), Options{Interval: time.Millisecond, Timeout: time.Second},
		func(context.Context) (int, error) {
			n++
			return n, nil
		},
		func(v int) bool { return v >= 4 },
	)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestUntilTimeoutReturnsZeroValue(t *testing.T) {
	got, err := Until(context.Background(), Options{Interval: 2 * time.Millisecond, Timeout: 20 * time.Millisecond},
		func(context.Context) (int, error) { return 7, nil },
		func(int) bool { return false },
	)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, got)
}
