package handler

import (
	"log/slog"
	"net/http"

	"blackline/internal/httputil"
	"blackline/internal/service"
)

// RedactionHandler handles redaction HTTP requests
type RedactionHandler struct {
	redactions *service.RedactionService
	logger     *slog.Logger
}

// NewRedactionHandler creates a new redaction handler
func NewRedactionHandler(redactions *service.RedactionService, logger *slog.Logger) *RedactionHandler {
	return &RedactionHandler{redactions: redactions, logger: logger}
}

// ListRedactions returns the redactions of a document, ordered by
// start offset
// GET /api/documents/{id}/redactions
func (h *RedactionHandler) ListRedactions(w http.ResponseWriter, r *http.Request) {
	reds, err := h.redactions.ListByDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, reds)
}

// CreateRedaction adds a reviewer-authored redaction
// POST /api/documents/{id}/redactions
func (h *RedactionHandler) CreateRedaction(w http.ResponseWriter, r *http.Request) {
	var in service.CreateRedactionInput
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	red, err := h.redactions.Create(r.Context(), r.PathValue("id"), in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, red)
}

// GetRedaction returns one redaction
// GET /api/redactions/{id}
func (h *RedactionHandler) GetRedaction(w http.ResponseWriter, r *http.Request) {
	red, err := h.redactions.GetRedaction(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, red)
}

// UpdateRedaction applies reviewer changes (type, acceptance,
// justification)
// PATCH /api/redactions/{id}
func (h *RedactionHandler) UpdateRedaction(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateRedactionInput
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	red, err := h.redactions.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, red)
}

// DeleteRedaction removes a redaction
// DELETE /api/redactions/{id}
func (h *RedactionHandler) DeleteRedaction(w http.ResponseWriter, r *http.Request) {
	if err := h.redactions.Delete(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contextRequest struct {
	Text string `json:"text"`
}

// SetContext creates or replaces the disclosure context of a redaction
// PUT /api/redactions/{id}/context
func (h *RedactionHandler) SetContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	red, created, err := h.redactions.SetContext(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		handleError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.RespondJSON(w, status, red)
}

// DeleteContext removes the disclosure context of a redaction
// DELETE /api/redactions/{id}/context
func (h *RedactionHandler) DeleteContext(w http.ResponseWriter, r *http.Request) {
	if err := h.redactions.DeleteContext(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
