package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"blackline/internal/httputil"
	"blackline/internal/service"
)

// CaseHandler handles case HTTP requests
type CaseHandler struct {
	cases  *service.CaseService
	logger *slog.Logger
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(cases *service.CaseService, logger *slog.Logger) *CaseHandler {
	return &CaseHandler{cases: cases, logger: logger}
}

// ListCases retrieves all cases
// GET /api/cases
func (h *CaseHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := h.cases.ListCases(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, cases)
}

// CreateCase opens a new case
// POST /api/cases
func (h *CaseHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var in service.CreateCaseInput
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if userID := httputil.GetUserID(r); userID != "" {
		in.CreatedBy = &userID
	}

	c, err := h.cases.CreateCase(r.Context(), in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, c)
}

// GetCase retrieves one case
// GET /api/cases/{id}
func (h *CaseHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	c, err := h.cases.GetCase(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, c)
}

// UpdateCase applies reviewer edits to a case
// PATCH /api/cases/{id}
func (h *CaseHandler) UpdateCase(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateCaseInput
	if err := httputil.ParseJSON(w, r, &in); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.cases.UpdateCase(r.Context(), r.PathValue("id"), in)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, c)
}

// DeleteCase removes a case, its documents and stored files
// DELETE /api/cases/{id}
func (h *CaseHandler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	if err := h.cases.DeleteCase(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartExport schedules disclosure package generation for a case
// POST /api/cases/{id}/export
func (h *CaseHandler) StartExport(w http.ResponseWriter, r *http.Request) {
	c, err := h.cases.StartExport(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusAccepted, c)
}

// DownloadExport streams the finished disclosure package
// GET /api/cases/{id}/export
func (h *CaseHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	f, name, err := h.cases.OpenExport(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("export download interrupted", "case", r.PathValue("id"), "error", err)
	}
}
