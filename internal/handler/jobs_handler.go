package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// JobsHandler reports the lifecycle state of search jobs.
type JobsHandler struct {
	svc SearchService
}

// NewJobsHandler creates a new instance of JobsHandler.
func NewJobsHandler(svc SearchService) *JobsHandler {
	return &JobsHandler{svc: svc}
}

// Status handles GET /jobs/:id requests.
func (h *JobsHandler) Status(c echo.Context) error {
	jobID := c.Param("id")
	if jobID == "" {
		return Error(c, http.StatusBadRequest, "job id is required")
	}

	status, err := h.svc.GetJobStatus(c.Request().Context(), jobID)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "could not load job status")
	}
	if status == nil {
		return Error(c, http.StatusNotFound, "job not found")
	}
	return Success(c, http.StatusOK, "", status)
}
