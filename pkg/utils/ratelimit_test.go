package utils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketCapacityFloor(t *testing.T) {
	b := NewTokenBucket(5, 0)
	assert.Equal(t, 1, b.Capacity())
	assert.Equal(t, 5.0, b.Rate())
}

func TestTokenBucketBurstThenThrottle(t *testing.T) {
	b := NewTokenBucket(10, 3)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "burst should be immediate")

	require.NoError(t, b.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func acquireConcurrently(t *testing.T, b *TokenBucket, workers, each int) []time.Time {
	t.Helper()
	ctx := context.Background()

	var mu sync.Mutex
	var stamps []time.Time
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				if err := b.Acquire(ctx); err != nil {
					return
				}
				mu.Lock()
				stamps = append(stamps, time.Now())
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, stamps, workers*each)
	return stamps
}

func span(stamps []time.Time) time.Duration {
	first, last := stamps[0], stamps[0]
	for _, s := range stamps {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	return last.Sub(first)
}

func TestTokenBucketNeverExceedsRate(t *testing.T) {
	tests := []struct {
		name      string
		perSecond float64
		capacity  int
		workers   int
		each      int
	}{
		{name: "capacity one", perSecond: 20, capacity: 1, workers: 8, each: 2},
		{name: "capacity equals rate", perSecond: 40, capacity: 40, workers: 8, each: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewTokenBucket(tt.perSecond, tt.capacity)
			stamps := acquireConcurrently(t, b, tt.workers, tt.each)
			n := float64(len(stamps))
			elapsed := span(stamps).Seconds()

			// A full bucket lets capacity requests through at once, so the
			// bound over any window is rate*elapsed + capacity.
			assert.LessOrEqual(t, n, tt.perSecond*elapsed+float64(tt.capacity)+1)

			// Everything beyond the initial burst waited for refills.
			minElapsed := (n - float64(tt.capacity)) / tt.perSecond
			assert.GreaterOrEqual(t, elapsed, minElapsed*0.9)
		})
	}
}

func TestTokenBucketContextCancel(t *testing.T) {
	b := NewTokenBucket(0.5, 1)
	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, b.Acquire(ctx))
}
