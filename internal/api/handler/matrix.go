// Package handler provides HTTP handlers for the Rain Matrix API.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/rainmatrix/rainmatrix/internal/api/middleware"
	"github.com/rainmatrix/rainmatrix/internal/api/models"
	"github.com/rainmatrix/rainmatrix/internal/api/response"
	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/grid"
	"github.com/rainmatrix/rainmatrix/internal/matrix"
	"github.com/rainmatrix/rainmatrix/internal/places"
	"github.com/rainmatrix/rainmatrix/internal/provider/resilience"
)

// MatrixHandler serves the rendered forecast grid.
type MatrixHandler struct {
	grid    *grid.Service
	metrics *middleware.ProviderMetrics
}

// NewMatrixHandler creates a new MatrixHandler. metrics may be nil.
func NewMatrixHandler(svc *grid.Service, metrics *middleware.ProviderMetrics) *MatrixHandler {
	return &MatrixHandler{grid: svc, metrics: metrics}
}

// GetMatrix handles GET /v1/matrix?date=&tz=&country=&model=&nocache=1.
func (h *MatrixHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := grid.Request{
		Date:     q.Get("date"),
		Timezone: q.Get("tz"),
		Country:  q.Get("country"),
		Model:    q.Get("model"),
		NoCache:  q.Get("nocache") == "1" || q.Get("nocache") == "true",
	}

	start := time.Now()
	res, err := h.grid.Matrix(r.Context(), req)
	if h.metrics != nil {
		h.metrics.RecordRequest("grid", "matrix", time.Since(start), err)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if res.CacheHit {
		w.Header().Set("X-Cache", "HIT")
		if h.metrics != nil {
			h.metrics.RecordCacheHit("grid", "matrix")
		}
	} else {
		w.Header().Set("X-Cache", "MISS")
		if h.metrics != nil {
			h.metrics.RecordCacheMiss("grid", "matrix")
		}
	}

	response.RawJSON(w, r, http.StatusOK, res.Payload)
}

// writeError maps domain errors to problem responses.
func (h *MatrixHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var windowErr *grid.DateWindowError
	var shapeErr *forecast.ShapeError
	var upstreamErr *forecast.UpstreamError
	var formatErr *places.FormatError

	switch {
	case errors.Is(err, grid.ErrBadDate):
		response.BadRequest(w, r, "target date must be YYYY-MM-DD", []models.FieldError{
			{Field: "date", Message: err.Error(), Code: "invalid_format"},
		})
	case errors.As(err, &windowErr):
		response.BadRequest(w, r, "target date outside the accepted window", []models.FieldError{
			{Field: "date", Message: windowErr.Error(), Code: "out_of_window"},
		})
	case errors.Is(err, matrix.ErrBadTimezone):
		response.BadRequest(w, r, "unknown timezone identifier", []models.FieldError{
			{Field: "tz", Message: err.Error(), Code: "invalid_value"},
		})
	case errors.Is(err, resilience.ErrCircuitOpen):
		response.ServiceUnavailable(w, r, "forecast provider temporarily unavailable")
	case errors.As(err, &shapeErr):
		response.UpstreamShape(w, r, shapeErr.Error())
	case errors.As(err, &upstreamErr):
		response.BadGateway(w, r, upstreamErr.Error())
	case errors.Is(err, places.ErrMissingFile), errors.As(err, &formatErr):
		response.InternalError(w, r, "location source misconfigured")
	case errors.Is(err, matrix.ErrNoLocations):
		response.InternalError(w, r, "location source is empty")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
