package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
)

// EnrichmentJob asks the enrichment worker to crawl one place's website for
// contact details.
type EnrichmentJob struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name"`
	Website string `json:"website,omitempty"`
	Address string `json:"address,omitempty"`
	JobID   string `json:"job_id"`
}

// EnrichmentClient hands freshly discovered places to the enrichment worker.
type EnrichmentClient interface {
	Enqueue(ctx context.Context, jobs []EnrichmentJob)
}

// WorkerEnricher posts enrichment batches to the worker service over HTTP.
type WorkerEnricher struct {
	client  *http.Client
	baseURL string
}

// NewWorkerEnricher builds an enrichment client, auto-configuring an ID token
// client when none is supplied.
func NewWorkerEnricher(client *http.Client, baseURL string) *WorkerEnricher {
	if baseURL == "" {
		panic("baseURL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if client == nil {
		idc, err := idtoken.NewClient(context.Background(), baseURL)
		if err != nil {
			client = &http.Client{Timeout: 10 * time.Second}
		} else {
			client = idc
		}
	}
	return &WorkerEnricher{client: client, baseURL: baseURL}
}

// Enqueue submits the batch fire-and-forget: enrichment failures must never
// fail the search that produced the places.
func (e *WorkerEnricher) Enqueue(ctx context.Context, jobs []EnrichmentJob) {
	if len(jobs) == 0 {
		return
	}
	if err := e.post(ctx, "/enrich/batch", jobs); err != nil {
		log.Printf("level=warn msg=\"enqueue enrichment batch\" count=%d err=%q", len(jobs), err)
	}
}

func (e *WorkerEnricher) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create worker request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("worker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("worker error: %s", extractWorkerError(resp.Body))
	}

	var workerResp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&workerResp); err != nil && err != io.EOF {
		return fmt.Errorf("could not decode worker response: %w", err)
	}
	if workerResp.Error != "" {
		return fmt.Errorf("worker error: %s", workerResp.Error)
	}
	return nil
}

func extractWorkerError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "unknown worker error"
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

var _ EnrichmentClient = (*WorkerEnricher)(nil)
