package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/octobees/leads-generator/search/internal/cache"
	"github.com/octobees/leads-generator/search/internal/coordination"
	"github.com/octobees/leads-generator/search/internal/entity"
)

func newTestGateway(t *testing.T, serverURL string, keys []string) *Gateway {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := cache.NewWithClient(rdb)

	ring, err := NewKeyRing(keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	breaker := coordination.NewCircuitBreaker(store, "places-test", 100, time.Minute)
	inflight := coordination.NewInflightLimiter(store, "places-test", 50, time.Minute)

	gw := NewGateway(&http.Client{Timeout: 5 * time.Second}, ring, breaker, inflight, serverURL)
	gw.sleep = func(context.Context, time.Duration) error { return nil }
	return gw
}

func searchPayload(places []rawPlace, token string) []byte {
	data, _ := json.Marshal(textSearchResponse{Places: places, NextPageToken: token})
	return data
}

func TestSearchTextSuccess(t *testing.T) {
	var gotKey, gotMask string
	var gotReq textSearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Goog-Api-Key")
		gotMask = r.Header.Get("X-Goog-FieldMask")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write(searchPayload([]rawPlace{
			{ID: "p1", DisplayName: &localizedText{Text: "Gym One"}},
			{ID: "", DisplayName: &localizedText{Text: "no id, dropped"}},
			{ID: "p2", DisplayName: &localizedText{Text: "Gym Two"}},
		}, "token-next"))
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv.URL, []string{"key-1"})
	page, err := gw.SearchText(context.Background(), "gym in Rome", SearchOptions{
		PageSize: 10,
		Bias:     &Circle{Lat: 41.9, Lng: 12.5, RadiusMeters: 1000},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Places) != 2 || page.Places[0].PlaceID != "p1" {
		t.Fatalf("unexpected places: %+v", page.Places)
	}
	if page.NextPageToken != "token-next" {
		t.Fatalf("continuation token must pass through unchanged, got %q", page.NextPageToken)
	}
	if gotKey != "key-1" {
		t.Fatalf("expected credential header, got %q", gotKey)
	}
	if gotMask == "" {
		t.Fatalf("expected field mask header")
	}
	if gotReq.TextQuery != "gym in Rome" || gotReq.PageSize != 10 {
		t.Fatalf("unexpected request body: %+v", gotReq)
	}
	if gotReq.LocationBias == nil || gotReq.LocationBias.Circle.Radius != 1000 {
		t.Fatalf("expected location bias circle: %+v", gotReq.LocationBias)
	}
}

func TestSearchTextRetriesWithKeyRotation(t *testing.T) {
	var mu sync.Mutex
	var keysSeen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keysSeen = append(keysSeen, r.Header.Get("X-Goog-Api-Key"))
		calls := len(keysSeen)
		mu.Unlock()
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(searchPayload([]rawPlace{{ID: "p1"}}, ""))
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv.URL, []string{"key-a", "key-b", "key-c"})
	page, err := gw.SearchText(context.Background(), "gym", SearchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Places) != 1 {
		t.Fatalf("expected 1 place, got %d", len(page.Places))
	}
	if len(keysSeen) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(keysSeen))
	}
	// each attempt uses a fresh credential from the ring
	if keysSeen[0] == keysSeen[1] || keysSeen[1] == keysSeen[2] {
		t.Fatalf("expected rotated keys, got %v", keysSeen)
	}
}

func TestSearchTextExhaustsRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv.URL, []string{"k"})
	_, err := gw.SearchText(context.Background(), "gym", SearchOptions{})
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestSearchTextNonRetryableFailsFast(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "bad field mask", "status": "INVALID_ARGUMENT"},
		})
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv.URL, []string{"k"})
	_, err := gw.SearchText(context.Background(), "gym", SearchOptions{})
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected terminal upstream error, got %v", err)
	}
	if ue.Message != "bad field mask" {
		t.Fatalf("expected provider message, got %q", ue.Message)
	}
	if calls != 1 {
		t.Fatalf("non-retryable error must not retry, got %d calls", calls)
	}
}

func TestUpstreamErrorRetryable(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !(&UpstreamError{StatusCode: code}).Retryable() {
			t.Fatalf("status %d must be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404} {
		if (&UpstreamError{StatusCode: code}).Retryable() {
			t.Fatalf("status %d must not be retryable", code)
		}
	}
}

func TestScanCityFansOutPerSector(t *testing.T) {
	var mu sync.Mutex
	biasSeen := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req textSearchRequest
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		key := ""
		if req.LocationBias != nil {
			data, _ := json.Marshal(req.LocationBias.Circle.Center)
			key = string(data)
		}
		biasSeen[key]++
		n := len(biasSeen)
		mu.Unlock()
		w.Write(searchPayload([]rawPlace{{ID: "p-" + key}, {ID: "q-" + string(rune('0'+n))}}, ""))
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv.URL, []string{"k"})
	vp := entity.Viewport{
		Northeast: entity.LatLng{Lat: 42.0, Lng: 12.7},
		Southwest: entity.LatLng{Lat: 41.8, Lng: 12.3},
	}
	places := gw.ScanCity(context.Background(), "gym", vp, ScanOptions{GridSize: 3, MaxPagesPerGrid: 1})

	if len(biasSeen) != 9 {
		t.Fatalf("expected 9 sector queries, got %d", len(biasSeen))
	}
	if len(places) != 18 {
		t.Fatalf("expected 18 raw results, got %d", len(places))
	}
}

func TestScanCityToleratesSectorFailure(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		fail := calls == 1
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write(searchPayload([]rawPlace{{ID: "ok"}}, ""))
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv.URL, []string{"k"})
	vp := entity.Viewport{
		Northeast: entity.LatLng{Lat: 42.0, Lng: 12.7},
		Southwest: entity.LatLng{Lat: 41.8, Lng: 12.3},
	}
	places := gw.ScanCity(context.Background(), "gym", vp, ScanOptions{GridSize: 2, MaxPagesPerGrid: 1})

	// one sector failed, the other three still contribute
	if len(places) != 3 {
		t.Fatalf("expected 3 results from surviving sectors, got %d", len(places))
	}
}

func TestScanSectorPaginates(t *testing.T) {
	var mu sync.Mutex
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req textSearchRequest
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		tokens = append(tokens, req.PageToken)
		n := len(tokens)
		mu.Unlock()
		next := ""
		if n < 3 {
			next = "tok-" + string(rune('0'+n))
		}
		w.Write(searchPayload([]rawPlace{{ID: "p-" + string(rune('0'+n))}}, next))
	}))
	defer srv.Close()

	gw := newTestGateway(t, srv.URL, []string{"k"})
	vp := entity.Viewport{
		Northeast: entity.LatLng{Lat: 41.91, Lng: 12.51},
		Southwest: entity.LatLng{Lat: 41.90, Lng: 12.50},
	}
	places := gw.ScanCity(context.Background(), "gym", vp, ScanOptions{GridSize: 1, MaxPagesPerGrid: 5})

	if len(places) != 3 {
		t.Fatalf("expected 3 pages of one result, got %d", len(places))
	}
	want := []string{"", "tok-1", "tok-2"}
	for i, tok := range want {
		if tokens[i] != tok {
			t.Fatalf("page %d: expected token %q, got %q", i, tok, tokens[i])
		}
	}
}

func TestSearchTextCircuitOpenFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	store := cache.NewWithClient(rdb)

	ring, _ := NewKeyRing([]string{"k"})
	// threshold 1: first failed call opens the breaker
	breaker := coordination.NewCircuitBreaker(store, "places-open", 1, time.Minute)
	inflight := coordination.NewInflightLimiter(store, "places-open", 10, time.Minute)
	gw := NewGateway(nil, ring, breaker, inflight, srv.URL)
	gw.sleep = func(context.Context, time.Duration) error { return nil }

	if _, err := gw.SearchText(context.Background(), "gym", SearchOptions{}); err == nil {
		t.Fatalf("expected upstream failure")
	}
	_, err := gw.SearchText(context.Background(), "gym", SearchOptions{})
	if !errors.Is(err, coordination.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}
