package handler

import (
	"log/slog"
	"net/http"

	"blackline/internal/domain/models"
	"blackline/internal/httputil"
	"blackline/internal/service"
)

// DocumentHandler handles case document HTTP requests
type DocumentHandler struct {
	documents *service.DocumentService
	logger    *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents *service.DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{documents: documents, logger: logger}
}

// UploadDocuments accepts one or more files under the "files" form
// field and schedules each for processing.
// POST /api/cases/{id}/documents
func (h *DocumentHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("id")

	// 64MB in-memory ceiling; larger parts spill to temp files
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	uploaded := make([]*models.Document, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		doc, err := h.documents.Upload(r.Context(), caseID, fh.Filename, f)
		f.Close()
		if err != nil {
			handleError(w, err)
			return
		}
		uploaded = append(uploaded, doc)
	}

	httputil.RespondJSON(w, http.StatusCreated, uploaded)
}

// ListDocuments returns the documents of a case
// GET /api/cases/{id}/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documents.ListByCase(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, docs)
}

// GetDocument returns one document with its extracted text
// GET /api/documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, doc)
}

// Resubmit discards all review state and re-runs processing
// POST /api/documents/{id}/resubmit
func (h *DocumentHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.Resubmit(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusAccepted, doc)
}

// CancelProcessing withdraws a queued document from the pipeline
// POST /api/documents/{id}/cancel
func (h *DocumentHandler) CancelProcessing(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.CancelProcessing(r.Context(), r.PathValue("id"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, doc)
}

type setStatusRequest struct {
	Status models.DocumentStatus `json:"status"`
}

// SetStatus moves a document between review states (READY/COMPLETED)
// PATCH /api/documents/{id}/status
func (h *DocumentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.documents.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, doc)
}

// DeleteDocument removes a document and its stored file
// DELETE /api/documents/{id}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.documents.DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
