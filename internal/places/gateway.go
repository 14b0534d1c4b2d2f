// Package places is the gateway to the upstream text-search provider. It
// owns credential rotation, retry with backoff, breaker and in-flight
// protection, and normalization of raw provider responses.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/octobees/leads-generator/search/internal/coordination"
	"github.com/octobees/leads-generator/search/internal/entity"
)

const (
	searchTextPath  = "/v1/places:searchText"
	defaultPageSize = 20
	maxAttempts     = 3
	maxBackoff      = 4000 * time.Millisecond

	defaultFieldMask = "places.id,places.displayName,places.formattedAddress," +
		"places.internationalPhoneNumber,places.nationalPhoneNumber," +
		"places.websiteUri,places.rating,places.userRatingCount," +
		"places.businessStatus,places.location,places.viewport," +
		"places.photos.name,places.currentOpeningHours.openNow,nextPageToken"
)

// UpstreamError carries a provider HTTP failure.
type UpstreamError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("places provider: %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Retryable reports whether the failure is worth another attempt.
func (e *UpstreamError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Circle is a location-bias region for one query.
type Circle struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
}

// SearchOptions tune a single text-search call.
type SearchOptions struct {
	PageToken string
	PageSize  int
	Bias      *Circle
}

// Page is one normalized result page. NextPageToken is the provider's
// continuation token, passed through unchanged.
type Page struct {
	Places        []entity.Place `json:"places"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// Gateway issues text-search requests against the provider. Construct one
// instance per process with injected configuration; tests substitute the
// base URL and clock.
type Gateway struct {
	client   *http.Client
	keys     *KeyRing
	breaker  *coordination.CircuitBreaker
	inflight *coordination.InflightLimiter
	baseURL  string
	language string

	// sleep is swapped out in tests to skip real backoff waits.
	sleep func(context.Context, time.Duration) error
}

// NewGateway wires the gateway with its traffic-control stack.
func NewGateway(client *http.Client, keys *KeyRing, breaker *coordination.CircuitBreaker, inflight *coordination.InflightLimiter, baseURL string) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Gateway{
		client:   client,
		keys:     keys,
		breaker:  breaker,
		inflight: inflight,
		baseURL:  baseURL,
		language: "en",
		sleep:    sleepCtx,
	}
}

// SearchText runs one paginated text-search call behind the circuit breaker
// and the global in-flight cap.
func (g *Gateway) SearchText(ctx context.Context, query string, opts SearchOptions) (Page, error) {
	var page Page
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.inflight.Do(ctx, func(ctx context.Context) error {
			result, err := g.searchWithRetry(ctx, query, opts)
			if err != nil {
				return err
			}
			page = result
			return nil
		})
	})
	return page, err
}

// searchWithRetry attempts the request up to maxAttempts times, rotating to
// the next credential and backing off exponentially between retries.
func (g *Gateway) searchWithRetry(ctx context.Context, query string, opts SearchOptions) (Page, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1000*(1<<(attempt-1))) * time.Millisecond
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			if err := g.sleep(ctx, backoff); err != nil {
				return Page{}, err
			}
		}

		page, err := g.doSearch(ctx, g.keys.Next(), query, opts)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return Page{}, err
		}
	}
	return Page{}, fmt.Errorf("places search exhausted %d attempts: %w", maxAttempts, lastErr)
}

func (g *Gateway) doSearch(ctx context.Context, apiKey, query string, opts SearchOptions) (Page, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	reqBody := textSearchRequest{
		TextQuery:    query,
		LanguageCode: g.language,
		PageSize:     pageSize,
		PageToken:    opts.PageToken,
	}
	if opts.Bias != nil {
		reqBody.LocationBias = &locationBias{Circle: &circle{
			Center: latLng{Latitude: opts.Bias.Lat, Longitude: opts.Bias.Lng},
			Radius: opts.Bias.RadiusMeters,
		}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return Page{}, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+searchTextPath, bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", apiKey)
	req.Header.Set("X-Goog-FieldMask", defaultFieldMask)

	resp, err := g.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var pe providerError
		_ = json.NewDecoder(resp.Body).Decode(&pe)
		return Page{}, &UpstreamError{
			StatusCode: resp.StatusCode,
			Status:     pe.Error.Status,
			Message:    pe.Error.Message,
		}
	}

	var sr textSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Page{}, fmt.Errorf("decode places response: %w", err)
	}

	page := Page{NextPageToken: sr.NextPageToken}
	for _, raw := range sr.Places {
		if raw.ID == "" {
			continue
		}
		page.Places = append(page.Places, normalizePlace(raw))
	}
	return page, nil
}

// isRetryable covers request-timeout aborts and retryable provider statuses.
func isRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
