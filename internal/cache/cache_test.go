package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewWithClient(rdb), mr
}

func TestGetSetJSON(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var missing payload
	ok, err := store.GetJSON(ctx, "absent", &missing)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := store.SetJSON(ctx, "k", payload{Name: "rome", Count: 3}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got payload
	ok, err = store.GetJSON(ctx, "k", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Name != "rome" || got.Count != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestIncrSetsTTLOnFirstIncrementOnly(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	n, err := store.Incr(ctx, "counter", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected first increment 1, got %d err=%v", n, err)
	}
	if mr.TTL("counter") != time.Minute {
		t.Fatalf("expected ttl on first increment, got %s", mr.TTL("counter"))
	}

	mr.FastForward(30 * time.Second)
	if n, _ = store.Incr(ctx, "counter", time.Minute); n != 2 {
		t.Fatalf("expected second increment 2, got %d", n)
	}
	if mr.TTL("counter") != 30*time.Second {
		t.Fatalf("ttl should not be refreshed, got %s", mr.TTL("counter"))
	}
}

func TestCompareAndDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "lock", "token-a", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := store.CompareAndDelete(ctx, "lock", "token-b")
	if err != nil || deleted {
		t.Fatalf("mismatched token must not delete, got deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := store.Get(ctx, "lock"); !ok {
		t.Fatalf("key should survive mismatched delete")
	}

	deleted, err = store.CompareAndDelete(ctx, "lock", "token-a")
	if err != nil || !deleted {
		t.Fatalf("matching token must delete, got deleted=%v err=%v", deleted, err)
	}
	if _, ok, _ := store.Get(ctx, "lock"); ok {
		t.Fatalf("key should be gone")
	}
}

func TestSlidingWindowAdd(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		member := string(rune('a' + i))
		count, err := store.SlidingWindowAdd(ctx, "win", member, now, time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != int64(i+1) {
			t.Fatalf("expected count %d, got %d", i+1, count)
		}
	}

	// entries outside the window are evicted before counting
	count, err := store.SlidingWindowAdd(ctx, "win", "d", now.Add(2*time.Second), time.Second)
	if err != nil || count != 1 {
		t.Fatalf("expected old entries evicted, got count=%d err=%v", count, err)
	}
}

func TestWaitForValue(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.WaitForValue(ctx, "slow", 50*time.Millisecond, 10*time.Millisecond); err != ErrWaitTimeout {
		t.Fatalf("expected timeout error, got %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		store.Set(ctx, "slow", "done", time.Minute)
	}()

	val, err := store.WaitForValue(ctx, "slow", time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "done" {
		t.Fatalf("expected done, got %s", val)
	}
}
