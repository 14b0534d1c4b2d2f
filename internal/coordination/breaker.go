package coordination

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/octobees/leads-generator/search/internal/cache"
)

// ErrCircuitOpen is returned without attempting the call while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

const breakerStateOpen = "OPEN"

// CircuitBreaker short-circuits calls to a named service after sustained
// failure. Two states only: CLOSED and OPEN. The open state auto-expires
// after the reset timeout, which also closes the breaker. Failures are not
// cleared on success; recovery is purely time-based.
type CircuitBreaker struct {
	store            *cache.Store
	service          string
	failureThreshold int64
	resetTimeout     time.Duration
}

// NewCircuitBreaker wraps calls to the named service.
func NewCircuitBreaker(store *cache.Store, service string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		store:            store,
		service:          service,
		failureThreshold: int64(failureThreshold),
		resetTimeout:     resetTimeout,
	}
}

func (b *CircuitBreaker) stateKey() string {
	return "cb:" + b.service + ":state"
}

func (b *CircuitBreaker) failureKey() string {
	return "cb:" + b.service + ":failures"
}

// Do runs fn unless the breaker is open. A cache outage never blocks the
// call; the breaker degrades to a pass-through with a logged warning.
func (b *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	state, ok, err := b.store.Get(ctx, b.stateKey())
	if err != nil {
		log.Printf("circuit breaker service=%s state check failed: %v", b.service, err)
	} else if ok && state == breakerStateOpen {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, b.service)
	}

	if err := fn(ctx); err != nil {
		b.recordFailure(ctx)
		return err
	}
	return nil
}

func (b *CircuitBreaker) recordFailure(ctx context.Context) {
	// Counter carries the same TTL as the open state so stale failures age out.
	count, err := b.store.Incr(ctx, b.failureKey(), b.resetTimeout)
	if err != nil {
		log.Printf("circuit breaker service=%s failure count failed: %v", b.service, err)
		return
	}
	if count < b.failureThreshold {
		return
	}

	if err := b.store.Set(ctx, b.stateKey(), breakerStateOpen, b.resetTimeout); err != nil {
		log.Printf("circuit breaker service=%s open failed: %v", b.service, err)
		return
	}
	if err := b.store.Delete(ctx, b.failureKey()); err != nil {
		log.Printf("circuit breaker service=%s counter reset failed: %v", b.service, err)
	}
	log.Printf("circuit breaker service=%s opened after %d failures", b.service, count)
}
