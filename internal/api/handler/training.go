package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/trafficlens/trafficlens/internal/api/models"
	"github.com/trafficlens/trafficlens/internal/api/response"
	"github.com/trafficlens/trafficlens/internal/area"
	"github.com/trafficlens/trafficlens/internal/collector"
)

// TrainingHandler handles training run control endpoints.
type TrainingHandler struct {
	scheduler *collector.Scheduler
	logger    zerolog.Logger
}

// NewTrainingHandler creates a new TrainingHandler.
func NewTrainingHandler(scheduler *collector.Scheduler, logger zerolog.Logger) *TrainingHandler {
	return &TrainingHandler{scheduler: scheduler, logger: logger}
}

// StartTraining handles POST /v1/areas/{areaID}/training/start - begin or
// resume collection for an area.
func (h *TrainingHandler) StartTraining(w http.ResponseWriter, r *http.Request) {
	areaID := chi.URLParam(r, "areaID")
	if areaID == "" {
		response.BadRequest(w, r, "areaID is required", nil)
		return
	}

	run, err := h.scheduler.Start(r.Context(), areaID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info().
		Str("area_id", areaID).
		Str("operator", GetOperator(r.Context())).
		Msg("training run started via API")

	// The run outlives the request; drain its events into the log.
	go h.drainEvents(run)

	status := run.Status()
	response.Accepted(w, r, "/v1/training", models.TrainingStatus{
		Active: true,
		Run:    toAPITrainingRun(status),
	})
}

// PauseTraining handles POST /v1/areas/{areaID}/training/pause - stop the
// run, keeping the area resumable.
func (h *TrainingHandler) PauseTraining(w http.ResponseWriter, r *http.Request) {
	areaID := chi.URLParam(r, "areaID")
	if areaID == "" {
		response.BadRequest(w, r, "areaID is required", nil)
		return
	}

	if err := h.scheduler.Pause(areaID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info().
		Str("area_id", areaID).
		Str("operator", GetOperator(r.Context())).
		Msg("training run paused via API")

	response.NoContent(w, r)
}

// CancelTraining handles POST /v1/areas/{areaID}/training/cancel - stop the
// run and mark the area paused.
func (h *TrainingHandler) CancelTraining(w http.ResponseWriter, r *http.Request) {
	areaID := chi.URLParam(r, "areaID")
	if areaID == "" {
		response.BadRequest(w, r, "areaID is required", nil)
		return
	}

	if err := h.scheduler.Cancel(areaID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.Info().
		Str("area_id", areaID).
		Str("operator", GetOperator(r.Context())).
		Msg("training run cancelled via API")

	response.NoContent(w, r)
}

// GetTraining handles GET /v1/training - report the active run, if any.
func (h *TrainingHandler) GetTraining(w http.ResponseWriter, r *http.Request) {
	status, active := h.scheduler.Active()

	result := models.TrainingStatus{Active: active}
	if active {
		result.Run = toAPITrainingRun(status)
	}
	response.JSON(w, r, http.StatusOK, result)
}

// drainEvents consumes a run's event stream until it closes, so progress
// from API-started runs lands in the log.
func (h *TrainingHandler) drainEvents(run *collector.Run) {
	for ev := range run.Events() {
		switch ev.Kind {
		case collector.EventProgress:
			h.logger.Debug().
				Str("area_id", ev.AreaID).
				Int("collected", ev.Collected).
				Int("target", ev.Target).
				Msg("training progress")
		case collector.EventTerminal:
			h.logger.Info().
				Str("area_id", ev.AreaID).
				Int("collected", ev.Collected).
				Int("target", ev.Target).
				Str("outcome", string(ev.Outcome)).
				Msg("training run ended")
		}
	}
}

// writeError maps scheduler errors to problem responses.
func (h *TrainingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, area.ErrAreaNotFound):
		response.NotFound(w, r, "area not found")
	case errors.Is(err, collector.ErrRunActive):
		response.Conflict(w, r, "a training run is already active")
	case errors.Is(err, collector.ErrNoActiveRun):
		response.Conflict(w, r, "no active training run for this area")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func toAPITrainingRun(status collector.RunStatus) *models.TrainingRun {
	return &models.TrainingRun{
		AreaID:    status.AreaID,
		Collected: status.Collected,
		Target:    status.Target,
		StartedAt: models.Timestamp(status.StartedAt),
	}
}
