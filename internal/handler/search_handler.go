package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/search/internal/coordination"
	"github.com/octobees/leads-generator/search/internal/dto"
	"github.com/octobees/leads-generator/search/internal/entity"
	"github.com/octobees/leads-generator/search/internal/middleware"
	"github.com/octobees/leads-generator/search/internal/repository"
	"github.com/octobees/leads-generator/search/internal/service"
)

// SearchService is the orchestrator surface the HTTP layer depends on.
type SearchService interface {
	Search(ctx context.Context, req service.SearchRequest) (*service.SearchResult, error)
	GetJobStatus(ctx context.Context, jobID string) (*service.JobStatus, error)
	EnrichedPlaces(ctx context.Context, placeIDs []string) ([]entity.EnrichedPlace, error)
}

// SearchHandler exposes business search over HTTP.
type SearchHandler struct {
	svc SearchService
}

// NewSearchHandler creates a new instance of SearchHandler.
func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Search handles POST /search requests.
func (h *SearchHandler) Search(c echo.Context) error {
	userID, err := userIDFromRequest(c)
	if err != nil {
		return Error(c, http.StatusUnauthorized, err.Error())
	}

	var req dto.SearchRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	req.City = strings.TrimSpace(req.City)
	req.Keyword = strings.TrimSpace(req.Keyword)
	req.PageToken = strings.TrimSpace(req.PageToken)

	if req.City == "" {
		return Error(c, http.StatusBadRequest, "city is required")
	}
	if req.Keyword == "" {
		return Error(c, http.StatusBadRequest, "keyword is required")
	}

	result, err := h.svc.Search(c.Request().Context(), service.SearchRequest{
		UserID:     userID,
		City:       req.City,
		Keyword:    req.Keyword,
		DeepSearch: req.DeepSearch,
		PageToken:  req.PageToken,
	})
	if err != nil {
		return searchError(c, err)
	}

	message := "search completed"
	if result.Cached {
		message = "search served from cache"
	}
	return Success(c, http.StatusOK, message, result)
}

func searchError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrTerminalToken):
		return Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrInsufficientCredits):
		return Error(c, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrSearchBusy):
		return Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrCacheExpired):
		return Error(c, http.StatusGone, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		return Error(c, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, coordination.ErrCircuitOpen), errors.Is(err, coordination.ErrCapacityExceeded):
		return Error(c, http.StatusServiceUnavailable, err.Error())
	default:
		return Error(c, http.StatusInternalServerError, "search failed")
	}
}

// userIDFromRequest resolves the caller identity from context (set by an
// upstream gateway) or the X-User-ID header.
func userIDFromRequest(c echo.Context) (uuid.UUID, error) {
	raw, _ := c.Get(middleware.ContextKeyUserID).(string)
	if raw == "" {
		raw = c.Request().Header.Get("X-User-ID")
	}
	if raw == "" {
		return uuid.Nil, errors.New("missing user identity")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid user identity")
	}
	return userID, nil
}
