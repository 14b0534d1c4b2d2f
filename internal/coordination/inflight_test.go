package coordination

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInflightLimiterCapsConcurrency(t *testing.T) {
	store, _ := newTestStore(t)
	limiter := NewInflightLimiter(store, "places-search", 2, time.Minute)
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	done := make(chan error, 2)

	for i := 0; i < 2; i++ {
		go func() {
			done <- limiter.Do(ctx, func(context.Context) error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started

	// both slots taken: a third call fails fast
	err := limiter.Do(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// slots released, next call runs
	if err := limiter.Do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected free slot after completion, got %v", err)
	}
}

func TestInflightLimiterReleasesOnFailure(t *testing.T) {
	store, _ := newTestStore(t)
	limiter := NewInflightLimiter(store, "op", 1, time.Minute)
	ctx := context.Background()
	boom := errors.New("work failed")

	if err := limiter.Do(ctx, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected work error, got %v", err)
	}

	// failed work must still free its slot
	if err := limiter.Do(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected slot released after failure, got %v", err)
	}
}
