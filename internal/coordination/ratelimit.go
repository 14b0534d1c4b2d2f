package coordination

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/leads-generator/search/internal/cache"
)

// FixedWindowLimiter caps request rate per key over a fixed window. The
// window starts with the first request and ends when the counter expires.
type FixedWindowLimiter struct {
	store  *cache.Store
	limit  int64
	window time.Duration
}

// NewFixedWindowLimiter builds a fixed-window limiter.
func NewFixedWindowLimiter(store *cache.Store, limit int, window time.Duration) *FixedWindowLimiter {
	if limit < 1 {
		limit = 1
	}
	return &FixedWindowLimiter{store: store, limit: int64(limit), window: window}
}

// Allow reports whether the request fits the current window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Incr(ctx, "rl:fixed:"+key, l.window)
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}

// SlidingWindowLimiter caps request rate per key over a rolling window,
// backed by a time-ordered set. Eviction, insert, count and TTL refresh run
// as one atomic batch so concurrent callers cannot race.
type SlidingWindowLimiter struct {
	store  *cache.Store
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter builds a sliding-window limiter.
func NewSlidingWindowLimiter(store *cache.Store, limit int, window time.Duration) *SlidingWindowLimiter {
	if limit < 1 {
		limit = 1
	}
	return &SlidingWindowLimiter{store: store, limit: int64(limit), window: window, now: time.Now}
}

// Allow reports whether the request fits inside the rolling window.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	// Unique member tag so same-millisecond requests are counted separately.
	member := fmt.Sprintf("%d-%s", l.now().UnixNano(), uuid.NewString()[:8])
	count, err := l.store.SlidingWindowAdd(ctx, "rl:sliding:"+key, member, l.now(), l.window)
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}
