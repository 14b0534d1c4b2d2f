package coordination

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/octobees/leads-generator/search/internal/cache"
)

// ErrCapacityExceeded is returned when the in-flight cap is already consumed.
// The caller may retry later.
var ErrCapacityExceeded = errors.New("concurrent execution cap exceeded")

// InflightLimiter caps concurrent executions of a named operation using an
// atomic counter. The counter TTL is a safety net against leaked slots from
// crashed holders.
type InflightLimiter struct {
	store         *cache.Store
	operation     string
	maxConcurrent int64
	ttl           time.Duration
}

// NewInflightLimiter builds a limiter for the named operation.
func NewInflightLimiter(store *cache.Store, operation string, maxConcurrent int, ttl time.Duration) *InflightLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &InflightLimiter{
		store:         store,
		operation:     operation,
		maxConcurrent: int64(maxConcurrent),
		ttl:           ttl,
	}
}

func (l *InflightLimiter) key() string {
	return "inflight:" + l.operation
}

// Do claims a slot, runs fn, and releases the slot regardless of outcome.
// When the cache is unreachable the work runs unaccounted rather than
// failing closed.
func (l *InflightLimiter) Do(ctx context.Context, fn func(context.Context) error) error {
	count, err := l.store.Incr(ctx, l.key(), l.ttl)
	if err != nil {
		log.Printf("inflight limiter op=%s unavailable: %v", l.operation, err)
		return fn(ctx)
	}

	if count > l.maxConcurrent {
		if _, decErr := l.store.Decr(ctx, l.key()); decErr != nil {
			log.Printf("inflight limiter op=%s rollback failed: %v", l.operation, decErr)
		}
		return fmt.Errorf("%w: %s at %d", ErrCapacityExceeded, l.operation, l.maxConcurrent)
	}

	defer func() {
		if _, decErr := l.store.Decr(ctx, l.key()); decErr != nil {
			log.Printf("inflight limiter op=%s release failed: %v", l.operation, decErr)
		}
	}()

	return fn(ctx)
}
