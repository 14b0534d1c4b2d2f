package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/search/internal/entity"
	"github.com/octobees/leads-generator/search/internal/repository"
	"github.com/octobees/leads-generator/search/internal/service"
)

type fakeSearchService struct {
	lastReq     service.SearchRequest
	result      *service.SearchResult
	err         error
	jobStatus   *service.JobStatus
	jobErr      error
	enriched    []entity.EnrichedPlace
	enrichedErr error
	lookupIDs   []string
}

func (f *fakeSearchService) Search(ctx context.Context, req service.SearchRequest) (*service.SearchResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSearchService) GetJobStatus(ctx context.Context, jobID string) (*service.JobStatus, error) {
	return f.jobStatus, f.jobErr
}

func (f *fakeSearchService) EnrichedPlaces(ctx context.Context, placeIDs []string) ([]entity.EnrichedPlace, error) {
	f.lookupIDs = placeIDs
	return f.enriched, f.enrichedErr
}

func newSearchContext(e *echo.Echo, body string, userID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSearchSuccess(t *testing.T) {
	e := echo.New()
	svc := &fakeSearchService{result: &service.SearchResult{
		JobID:         "job-1",
		Places:        []entity.Place{{PlaceID: "p1", Name: "Cafe"}},
		NextPageToken: "tok-next",
	}}
	h := NewSearchHandler(svc)

	userID := uuid.NewString()
	c, rec := newSearchContext(e, `{"city":"  Austin ","keyword":" coffee shop ","deep_search":true}`, userID)

	if err := h.Search(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	if svc.lastReq.City != "Austin" || svc.lastReq.Keyword != "coffee shop" {
		t.Fatalf("expected trimmed fields, got %+v", svc.lastReq)
	}
	if !svc.lastReq.DeepSearch {
		t.Fatalf("expected deep_search to pass through")
	}
	if svc.lastReq.UserID.String() != userID {
		t.Fatalf("expected user id %s, got %s", userID, svc.lastReq.UserID)
	}

	var payload APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Status != "success" {
		t.Fatalf("unexpected envelope: %+v", payload)
	}
}

func TestSearchValidation(t *testing.T) {
	e := echo.New()
	h := NewSearchHandler(&fakeSearchService{})
	userID := uuid.NewString()

	cases := []struct {
		name string
		body string
		user string
		want int
	}{
		{"missing user", `{"city":"Austin","keyword":"coffee"}`, "", http.StatusUnauthorized},
		{"bad user id", `{"city":"Austin","keyword":"coffee"}`, "not-a-uuid", http.StatusUnauthorized},
		{"missing city", `{"keyword":"coffee"}`, userID, http.StatusBadRequest},
		{"missing keyword", `{"city":"Austin"}`, userID, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newSearchContext(e, tc.body, tc.user)
			if err := h.Search(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSearchErrorMapping(t *testing.T) {
	e := echo.New()
	userID := uuid.NewString()

	cases := []struct {
		err  error
		want int
	}{
		{service.ErrTerminalToken, http.StatusBadRequest},
		{repository.ErrInsufficientCredits, http.StatusPaymentRequired},
		{service.ErrSearchBusy, http.StatusConflict},
		{service.ErrCacheExpired, http.StatusGone},
		{service.ErrRateLimited, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		h := NewSearchHandler(&fakeSearchService{err: tc.err})
		c, rec := newSearchContext(e, `{"city":"Austin","keyword":"coffee"}`, userID)
		if err := h.Search(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestJobStatus(t *testing.T) {
	e := echo.New()

	t.Run("found", func(t *testing.T) {
		svc := &fakeSearchService{jobStatus: &service.JobStatus{Status: service.JobStatusCompleted}}
		h := NewJobsHandler(svc)

		req := httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/jobs/:id")
		c.SetParamNames("id")
		c.SetParamValues("job-1")

		if err := h.Status(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		h := NewJobsHandler(&fakeSearchService{})

		req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/jobs/:id")
		c.SetParamNames("id")
		c.SetParamValues("missing")

		if err := h.Status(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
