package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trafficlens/trafficlens/internal/api/models"
	"github.com/trafficlens/trafficlens/internal/api/response"
	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/snapshot"
)

// Listing page size bounds.
const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// AreaHandler handles area endpoints.
type AreaHandler struct {
	areas *area.Service
}

// NewAreaHandler creates a new AreaHandler.
func NewAreaHandler(areas *area.Service) *AreaHandler {
	return &AreaHandler{areas: areas}
}

// CreateArea handles POST /v1/areas - register an area and generate its grid.
func (h *AreaHandler) CreateArea(w http.ResponseWriter, r *http.Request) {
	var input models.AreaCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	created, err := h.areas.Create(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/areas/%s", created.ID)
	response.Created(w, r, location, created)
}

// ListAreas handles GET /v1/areas - list areas, newest first.
func (h *AreaHandler) ListAreas(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		response.BadRequest(w, r, "invalid limit parameter", []models.FieldError{
			{Field: "limit", Message: "must be an integer between 1 and 200"},
		})
		return
	}

	areas, err := h.areas.List(r.Context(), limit, r.URL.Query().Get("cursor"), r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, areas)
}

// GetArea handles GET /v1/areas/{areaID} - load an area with its grid polyline.
func (h *AreaHandler) GetArea(w http.ResponseWriter, r *http.Request) {
	areaID := chi.URLParam(r, "areaID")
	if areaID == "" {
		response.BadRequest(w, r, "areaID is required", nil)
		return
	}

	a, err := h.areas.Get(r.Context(), areaID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, a)
}

// GetAreaStats handles GET /v1/areas/{areaID}/stats - collection progress.
func (h *AreaHandler) GetAreaStats(w http.ResponseWriter, r *http.Request) {
	areaID := chi.URLParam(r, "areaID")
	if areaID == "" {
		response.BadRequest(w, r, "areaID is required", nil)
		return
	}

	stats, err := h.areas.Stats(r.Context(), areaID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, stats)
}

// ListSnapshots handles GET /v1/areas/{areaID}/snapshots - snapshot
// summaries, newest first.
func (h *AreaHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	areaID := chi.URLParam(r, "areaID")
	if areaID == "" {
		response.BadRequest(w, r, "areaID is required", nil)
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		response.BadRequest(w, r, "invalid limit parameter", []models.FieldError{
			{Field: "limit", Message: "must be an integer between 1 and 200"},
		})
		return
	}

	snapshots, err := h.areas.Snapshots(r.Context(), areaID, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, snapshots)
}

// GetSnapshot handles GET /v1/areas/{areaID}/snapshots/{seq} - a single
// snapshot with its per-route samples.
func (h *AreaHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	areaID := chi.URLParam(r, "areaID")
	if areaID == "" {
		response.BadRequest(w, r, "areaID is required", nil)
		return
	}

	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil || seq < 0 {
		response.BadRequest(w, r, "invalid snapshot sequence", []models.FieldError{
			{Field: "seq", Message: "must be a non-negative integer"},
		})
		return
	}

	snap, err := h.areas.Snapshot(r.Context(), areaID, seq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, snap)
}

// writeError maps area service errors to problem responses.
func (h *AreaHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *area.ValidationError

	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, "validation failed", validationErr.Errors)
	case errors.Is(err, area.ErrAreaNotFound):
		response.NotFound(w, r, "area not found")
	case errors.Is(err, snapshot.ErrSnapshotNotFound):
		response.NotFound(w, r, "snapshot not found")
	case errors.Is(err, area.ErrDuplicateName):
		response.Conflict(w, r, "an area with this name already exists")
	case errors.Is(err, area.ErrInvalidCursor):
		response.BadRequest(w, r, "invalid cursor parameter", []models.FieldError{
			{Field: "cursor", Message: "is not a valid list cursor"},
		})
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

// parseLimit reads the limit query parameter, applying the default and cap.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxPageLimit {
		return 0, errors.New("limit out of range")
	}
	return limit, nil
}
