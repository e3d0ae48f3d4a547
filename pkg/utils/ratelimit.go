package utils

import (
	"context"

	"golang.org/x/time/rate"
)

// TokenBucket throttles outbound requests. Tokens refill continuously at
// rate per second up to maxTokens and are computed on demand from elapsed
// time, so an idle bucket costs nothing.
type TokenBucket struct {
	limiter *rate.Limiter
}

func NewTokenBucket(perSecond float64, maxTokens int) *TokenBucket {
	if maxTokens < 1 {
		maxTokens = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), maxTokens)}
}

// Acquire blocks until a token is available or ctx is done.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

func (b *TokenBucket) Rate() float64 {
	return float64(b.limiter.Limit())
}

func (b *TokenBucket) Capacity() int {
	return b.limiter.Burst()
}
