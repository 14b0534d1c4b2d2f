package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const maxPlacesPerLookup = 100

// PlacesHandler serves stored places with their enrichment data.
type PlacesHandler struct {
	svc SearchService
}

// NewPlacesHandler creates a new instance of PlacesHandler.
func NewPlacesHandler(svc SearchService) *PlacesHandler {
	return &PlacesHandler{svc: svc}
}

// Lookup handles GET /places?ids=a,b,c requests.
func (h *PlacesHandler) Lookup(c echo.Context) error {
	var ids []string
	for _, raw := range strings.Split(c.QueryParam("ids"), ",") {
		if id := strings.TrimSpace(raw); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return Error(c, http.StatusBadRequest, "ids query parameter is required")
	}
	if len(ids) > maxPlacesPerLookup {
		return Error(c, http.StatusBadRequest, "too many ids requested")
	}

	places, err := h.svc.EnrichedPlaces(c.Request().Context(), ids)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "could not load places")
	}
	return Success(c, http.StatusOK, "", places)
}
