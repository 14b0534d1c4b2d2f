package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/search/internal/config"
	"github.com/octobees/leads-generator/search/internal/handler"
	middlewarepkg "github.com/octobees/leads-generator/search/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Search *handler.SearchHandler
	Jobs   *handler.JobsHandler
	Places *handler.PlacesHandler
}

// Register wires all HTTP routes for the service.
func Register(e *echo.Echo, cfg *config.Config, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	e.POST("/search", handlers.Search.Search, middlewarepkg.SearchRateLimiter(cfg.RateLimitSearch))
	e.GET("/jobs/:id", handlers.Jobs.Status)
	e.GET("/places", handlers.Places.Lookup)
}
