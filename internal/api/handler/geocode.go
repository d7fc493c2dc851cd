package handler

import (
	"errors"
	"net/http"

	"github.com/rainmatrix/rainmatrix/internal/api/models"
	"github.com/rainmatrix/rainmatrix/internal/api/response"
	"github.com/rainmatrix/rainmatrix/internal/forecast"
	"github.com/rainmatrix/rainmatrix/internal/provider/resilience"
)

// GeocodeHandler resolves free-text place names.
type GeocodeHandler struct {
	forecast *forecast.Service
}

// NewGeocodeHandler creates a new GeocodeHandler.
func NewGeocodeHandler(svc *forecast.Service) *GeocodeHandler {
	return &GeocodeHandler{forecast: svc}
}

// Geocode handles GET /v1/geocode?q=&country=.
func (h *GeocodeHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, r, "missing query", []models.FieldError{
			{Field: "q", Message: "required", Code: "required"},
		})
		return
	}
	country := r.URL.Query().Get("country")

	loc, err := h.forecast.Resolve(r.Context(), query, country)
	if err != nil {
		var upstreamErr *forecast.UpstreamError
		switch {
		case errors.Is(err, forecast.ErrNoMatch):
			response.NotFound(w, r, "no location matched the query")
		case errors.Is(err, resilience.ErrCircuitOpen):
			response.ServiceUnavailable(w, r, "geocoding provider temporarily unavailable")
		case errors.As(err, &upstreamErr):
			response.BadGateway(w, r, upstreamErr.Error())
		default:
			response.InternalError(w, r, "an unexpected error occurred")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.GeocodeResult{
		Label: loc.Label,
		Lat:   loc.Lat,
		Lon:   loc.Lon,
	})
}
