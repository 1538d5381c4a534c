package handler

import (
	"log/slog"
	"net/http"

	"blackline/internal/domain/models"
	"blackline/internal/httputil"
	"blackline/internal/service"
)

// TrainingHandler handles model and training HTTP requests
type TrainingHandler struct {
	training *service.TrainingService
	logger   *slog.Logger
}

// NewTrainingHandler creates a new training handler
func NewTrainingHandler(training *service.TrainingService, logger *slog.Logger) *TrainingHandler {
	return &TrainingHandler{training: training, logger: logger}
}

// UploadTrainingDocument stores a highlighted DOCX ground-truth file
// POST /api/training/documents
func (h *TrainingHandler) UploadTrainingDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer f.Close()

	var createdBy *string
	if userID := httputil.GetUserID(r); userID != "" {
		createdBy = &userID
	}

	doc, err := h.training.UploadTrainingDocument(r.Context(), fh.Filename, createdBy, f)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// ListTrainingDocuments returns all training documents
// GET /api/training/documents
func (h *TrainingHandler) ListTrainingDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.training.ListTrainingDocuments(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, docs)
}

// DeleteTrainingDocument removes a training document and its file
// DELETE /api/training/documents/{id}
func (h *TrainingHandler) DeleteTrainingDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.training.DeleteTrainingDocument(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startTrainingRequest struct {
	Source models.TrainingSource `json:"source"`
}

type startTrainingResponse struct {
	TaskKey string `json:"task_key"`
}

// StartTraining schedules a training run
// POST /api/training/runs
func (h *TrainingHandler) StartTraining(w http.ResponseWriter, r *http.Request) {
	var req startTrainingRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key, err := h.training.StartTraining(r.Context(), req.Source)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusAccepted, startTrainingResponse{TaskKey: key})
}

// ListTrainingRuns returns all runs with provenance
// GET /api/training/runs
func (h *TrainingHandler) ListTrainingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.training.ListTrainingRuns(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, runs)
}

// ListModels returns all registered detection models
// GET /api/models
func (h *TrainingHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	ms, err := h.training.ListModels(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, ms)
}

// GetModel returns one model
// GET /api/models/{id}
func (h *TrainingHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.training.GetModel(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, m)
}

// ActivateModel makes a model the one the suggestion pipeline uses
// POST /api/models/{id}/activate
func (h *TrainingHandler) ActivateModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.training.ActivateModel(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, m)
}

// DeleteModel removes an inactive model and its files
// DELETE /api/models/{id}
func (h *TrainingHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.training.DeleteModel(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
