package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(60, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "token %d", i+1)
	}
	assert.False(t, tb.Allow(), "burst exhausted")

	tb.Reset()
	assert.True(t, tb.Allow(), "reset refills the bucket")
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, tb.Wait(ctx))
}

func TestSlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(2, time.Minute)
	sw.now = func() time.Time { return now }

	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())

	now = now.Add(30 * time.Second)
	assert.False(t, sw.Allow(), "still inside the window")

	now = now.Add(31 * time.Second)
	assert.True(t, sw.Allow(), "oldest requests left the window")

	sw.Reset()
	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sw.Wait(ctx), context.Canceled)
}

func TestNew(t *testing.T) {
	l, err := New("", 30, 5)
	require.NoError(t, err)
	assert.IsType(t, &TokenBucket{}, l)

	l, err = New(StrategySlidingWindow, 30, 5)
	require.NoError(t, err)
	assert.IsType(t, &SlidingWindow{}, l)

	_, err = New("leaky", 30, 5)
	assert.Error(t, err)

	_, err = New(StrategyTokenBucket, 0, 5)
	assert.Error(t, err)
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	assert.True(t, l.Allow())
	assert.NoError(t, l.Wait(context.Background()))
}
