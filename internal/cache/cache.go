package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrWaitTimeout is returned when WaitForValue gives up before a value appears.
var ErrWaitTimeout = errors.New("timed out waiting for value")

// compareAndDelete removes the key only while it still holds the expected
// value. Single script so an expiry-and-reacquire race cannot delete another
// holder's key.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// slidingWindow evicts entries older than the window, records the new entry,
// counts what remains and refreshes the key TTL, all in one atomic step.
// ARGV: now-millis, window-millis, member.
var slidingWindow = redis.NewScript(`
redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, ARGV[1] - ARGV[2])
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[3])
local count = redis.call("ZCARD", KEYS[1])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return count
`)

// incrWithTTL increments a counter, attaching the TTL when this call creates
// the key. ARGV: ttl-millis, delta.
var incrWithTTL = redis.NewScript(`
local count = redis.call("INCRBY", KEYS[1], ARGV[2])
if count == tonumber(ARGV[2]) then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Store wraps the shared Redis instance behind the handful of atomic
// operations the coordination layer is built from.
type Store struct {
	rdb *redis.Client
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Get retrieves a raw string value; the bool reports presence.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores a raw string value with a TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// GetJSON unmarshals the stored value into dest; the bool reports presence.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals value and stores it with a TTL.
func (s *Store) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data), ttl)
}

// SetNX sets the key only if absent. Returns whether the write happened.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return ok, nil
}

// Incr atomically increments the counter, attaching ttl when the counter is
// created by this call.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.IncrBy(ctx, key, 1, ttl)
}

// IncrBy atomically adds delta to the counter, attaching ttl when the counter
// is created by this call.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	count, err := incrWithTTL.Run(ctx, s.rdb, []string{key}, ttl.Milliseconds(), delta).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return count, nil
}

// Decr atomically decrements the counter.
func (s *Store) Decr(ctx context.Context, key string) (int64, error) {
	count, err := s.rdb.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("decr %s: %w", key, err)
	}
	return count, nil
}

// Delete removes the given keys.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del %v: %w", keys, err)
	}
	return nil
}

// CompareAndDelete deletes the key only if it still holds expected.
func (s *Store) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	deleted, err := compareAndDelete.Run(ctx, s.rdb, []string{key}, expected).Int64()
	if err != nil {
		return false, fmt.Errorf("compare-and-delete %s: %w", key, err)
	}
	return deleted == 1, nil
}

// SlidingWindowAdd records member at now and returns how many entries remain
// inside the window, as one atomic batch.
func (s *Store) SlidingWindowAdd(ctx context.Context, key, member string, now time.Time, window time.Duration) (int64, error) {
	count, err := slidingWindow.Run(ctx, s.rdb, []string{key},
		now.UnixMilli(), window.Milliseconds(), member).Int64()
	if err != nil {
		return 0, fmt.Errorf("sliding window %s: %w", key, err)
	}
	return count, nil
}

// Publish delivers a JSON payload on a channel, best-effort.
func (s *Store) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode publish payload: %w", err)
	}
	if err := s.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription on the given channel. The caller owns Close.
func (s *Store) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, channel)
}

// WaitForValue polls until the key holds a value or the timeout elapses.
// Lets losers of a lock race observe the winner's result instead of
// duplicating work.
func (s *Store) WaitForValue(ctx context.Context, key string, timeout, pollInterval time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		val, ok, err := s.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if ok {
			return val, nil
		}
		if time.Now().After(deadline) {
			return "", ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
