package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Guard decides whether a user may start a run. It is consulted once per run,
// before anything executes.
type Guard interface {
	Allow(ctx context.Context, userID string) error
}

type AllowAll struct{}

func (AllowAll) Allow(context.Context, string) error { return nil }

// UserLimiter is a token bucket per user.
type UserLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewUserLimiter allows perMinute runs per user with the given burst. perMinute <= 0
// disables limiting.
func NewUserLimiter(perMinute, burst int) *UserLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst <= 0 {
		burst = 1
	}
	return &UserLimiter{limiters: map[string]*rate.Limiter{}, limit: limit, burst: burst}
}

func (l *UserLimiter) Allow(ctx context.Context, userID string) error {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	if !lim.Allow() {
		return ErrRateLimited
	}
	return nil
}
