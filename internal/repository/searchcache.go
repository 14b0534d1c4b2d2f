package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchCacheRepository mirrors hot-cache search results into the durable
// store so results survive cache eviction.
type SearchCacheRepository interface {
	Get(ctx context.Context, signature string) (json.RawMessage, error)
	Put(ctx context.Context, signature string, payload json.RawMessage, ttl time.Duration) error
}

// PGXSearchCacheRepository implements SearchCacheRepository using pgx.
type PGXSearchCacheRepository struct {
	pool pgxPool
}

// NewPGXSearchCacheRepository wires a pgx backed search cache.
func NewPGXSearchCacheRepository(pool *pgxpool.Pool) *PGXSearchCacheRepository {
	return &PGXSearchCacheRepository{pool: pool}
}

// Get returns the cached payload for the signature, or nil when absent or
// expired.
func (r *PGXSearchCacheRepository) Get(ctx context.Context, signature string) (json.RawMessage, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `
        SELECT payload FROM search_cache
        WHERE signature = $1 AND expires_at > NOW()
    `, signature).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query search cache %s: %w", signature, err)
	}
	return payload, nil
}

// Put stores or refreshes the cached payload keyed by query signature.
func (r *PGXSearchCacheRepository) Put(ctx context.Context, signature string, payload json.RawMessage, ttl time.Duration) error {
	if len(payload) == 0 {
		return fmt.Errorf("cache payload is empty")
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO search_cache (signature, payload, expires_at, updated_at)
        VALUES ($1, $2::jsonb, NOW() + make_interval(secs => $3), NOW())
        ON CONFLICT (signature) DO UPDATE SET
            payload = EXCLUDED.payload,
            expires_at = EXCLUDED.expires_at,
            updated_at = NOW()
    `, signature, payload, ttl.Seconds())
	if err != nil {
		return fmt.Errorf("upsert search cache %s: %w", signature, err)
	}
	return nil
}
