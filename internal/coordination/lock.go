// Package coordination builds the traffic-control primitives — distributed
// lock, circuit breaker, in-flight limiter and rate limiters — from the
// shared cache's atomic operations. The cache is the single source of
// mutual-exclusion and rate state; the durable store is never used for
// locking.
package coordination

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/leads-generator/search/internal/cache"
)

// ErrLockContended is returned when a lock cannot be acquired within the
// caller's wait-and-retry budget.
var ErrLockContended = errors.New("lock held by another caller")

// Lock is a distributed mutual-exclusion primitive with owner tokens.
// A stale lock self-expires via TTL, so release is best-effort.
type Lock struct {
	store *cache.Store
}

// NewLock wires a lock factory over the shared cache.
func NewLock(store *cache.Store) *Lock {
	return &Lock{store: store}
}

// Acquire sets the key only if absent and returns the owner token on
// success. ok is false while another caller holds the lock.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.NewString()
	ok, err = l.store.SetNX(ctx, key, token, ttl)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release deletes the key only while it still holds token, so a lock that
// expired and was reacquired by someone else is never released from here.
// Failures are logged and swallowed.
func (l *Lock) Release(ctx context.Context, key, token string) {
	deleted, err := l.store.CompareAndDelete(ctx, key, token)
	if err != nil {
		log.Printf("lock release key=%s failed: %v", key, err)
		return
	}
	if !deleted {
		log.Printf("lock release key=%s skipped: token no longer owner", key)
	}
}
