package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
	"blackline/internal/filestore"
	"blackline/internal/tasks"
)

// DocumentService manages uploads and the document review lifecycle.
type DocumentService struct {
	docRepo       repositories.DocumentRepository
	caseRepo      repositories.CaseRepository
	redactionRepo repositories.RedactionRepository
	store         *filestore.LocalStore
	queue         TaskQueue
	txManager     repositories.TransactionManager
	logger        *slog.Logger
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docRepo repositories.DocumentRepository,
	caseRepo repositories.CaseRepository,
	redactionRepo repositories.RedactionRepository,
	store *filestore.LocalStore,
	queue TaskQueue,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		docRepo:       docRepo,
		caseRepo:      caseRepo,
		redactionRepo: redactionRepo,
		store:         store,
		queue:         queue,
		txManager:     txManager,
		logger:        logger,
	}
}

// Upload stores the file, creates the document in PROCESSING and
// schedules the suggestion pipeline.
func (s *DocumentService) Upload(ctx context.Context, caseID, uploadName string, r io.Reader) (*models.Document, error) {
	if _, err := s.caseRepo.GetByID(ctx, caseID); err != nil {
		return nil, err
	}

	filename, fileType := models.DeriveFileMeta(uploadName)
	if filename == "" || filename == "." {
		return nil, &domain.ValidationError{Message: "upload has no usable filename"}
	}

	rel, err := s.store.Save(r, "documents", filename)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	doc := &models.Document{
		CaseID:       caseID,
		OriginalFile: rel,
		Filename:     filename,
		FileType:     fileType,
		Status:       models.DocumentStatusProcessing,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		s.store.Remove(rel)
		return nil, err
	}

	if err := s.scheduleProcessing(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document uploaded", "document", doc.ID, "case", caseID, "filename", filename)
	return doc, nil
}

func (s *DocumentService) scheduleProcessing(ctx context.Context, doc *models.Document) error {
	key, err := s.queue.Enqueue(tasks.OpDocumentProcess, doc.ID)
	if err != nil {
		return err
	}
	doc.ProcessingTaskKey = &key
	return s.docRepo.Update(ctx, doc)
}

// GetDocument returns one document.
func (s *DocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.docRepo.GetByID(ctx, id)
}

// ListByCase returns a case's documents in upload order.
func (s *DocumentService) ListByCase(ctx context.Context, caseID string) ([]models.Document, error) {
	if _, err := s.caseRepo.GetByID(ctx, caseID); err != nil {
		return nil, err
	}
	return s.docRepo.ListByCase(ctx, caseID)
}

// Resubmit reruns the pipeline for a document that is not currently
// processing. All existing redactions and extraction results are
// discarded; offsets from a previous run are meaningless against newly
// extracted text.
func (s *DocumentService) Resubmit(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case models.DocumentStatusProcessing:
		return nil, &domain.ConflictError{Message: "document is already being processed"}
	case models.DocumentStatusCompleted:
		return nil, &domain.ConflictError{Message: "completed documents must be reopened before resubmission"}
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.redactionRepo.DeleteByDocument(txCtx, doc.ID); err != nil {
			return err
		}
		doc.ExtractedText = nil
		doc.Tables = nil
		doc.Structure = nil
		doc.ModelID = nil
		doc.Status = models.DocumentStatusProcessing
		return s.docRepo.Update(txCtx, doc)
	})
	if err != nil {
		return nil, err
	}

	if err := s.scheduleProcessing(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("document resubmitted", "document", doc.ID)
	return doc, nil
}

// CancelProcessing withdraws a document from the pipeline. Only
// documents still in PROCESSING can be cancelled; the queued task is
// dropped if it has not started, and any partial results are cleared.
func (s *DocumentService) CancelProcessing(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.DocumentStatusProcessing {
		return nil, &domain.ConflictError{
			Message: fmt.Sprintf("document is %s, only PROCESSING documents can be cancelled", doc.Status),
		}
	}

	if doc.ProcessingTaskKey != nil {
		s.queue.Cancel(*doc.ProcessingTaskKey)
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.redactionRepo.DeleteByDocument(txCtx, doc.ID); err != nil {
			return err
		}
		doc.ExtractedText = nil
		doc.Tables = nil
		doc.Structure = nil
		doc.ModelID = nil
		doc.ProcessingTaskKey = nil
		doc.Status = models.DocumentStatusUnprocessed
		return s.docRepo.Update(txCtx, doc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document processing cancelled", "document", doc.ID)
	return doc, nil
}

// reviewTransitions are the status changes a reviewer may make
// directly. Everything else happens through the pipeline.
var reviewTransitions = map[models.DocumentStatus]map[models.DocumentStatus]bool{
	models.DocumentStatusReadyForReview: {models.DocumentStatusCompleted: true},
	models.DocumentStatusCompleted:      {models.DocumentStatusReadyForReview: true},
}

// SetStatus applies a reviewer-driven status change: finishing a review
// or reopening a completed document.
func (s *DocumentService) SetStatus(ctx context.Context, id string, status models.DocumentStatus) (*models.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !reviewTransitions[doc.Status][status] {
		return nil, &domain.ConflictError{
			Message: fmt.Sprintf("cannot move document from %s to %s", doc.Status, status),
		}
	}

	doc.Status = status
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("document status changed", "document", doc.ID, "status", status)
	return doc, nil
}

// DeleteDocument removes a document and its stored file.
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docRepo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Remove(doc.OriginalFile); err != nil {
		s.logger.Warn("stored file not removed", "document", id, "error", err)
	}
	s.logger.Info("document deleted", "document", id)
	return nil
}
