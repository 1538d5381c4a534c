package service

import (
	"context"
	"errors"
	"log/slog"

	"blackline/internal/detect"
	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
	"blackline/internal/extract"
	"blackline/internal/filestore"
)

// SuggestionService runs the background pipeline that turns an uploaded
// document into extracted text plus redaction suggestions.
type SuggestionService struct {
	docRepo       repositories.DocumentRepository
	redactionRepo repositories.RedactionRepository
	extractor     *extract.Extractor
	detector      *detect.Detector
	registry      *detect.Registry
	store         *filestore.LocalStore
	txManager     repositories.TransactionManager
	logger        *slog.Logger
}

// NewSuggestionService creates a new suggestion service.
func NewSuggestionService(
	docRepo repositories.DocumentRepository,
	redactionRepo repositories.RedactionRepository,
	extractor *extract.Extractor,
	detector *detect.Detector,
	registry *detect.Registry,
	store *filestore.LocalStore,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *SuggestionService {
	return &SuggestionService{
		docRepo:       docRepo,
		redactionRepo: redactionRepo,
		extractor:     extractor,
		detector:      detector,
		registry:      registry,
		store:         store,
		txManager:     txManager,
		logger:        logger,
	}
}

// Process is the document.process task handler body. A document that
// disappeared before the task ran is not an error. Unreadable or empty
// files park the document in ERROR without failing the task; a missing
// active model is an operator problem and is propagated after the
// document is parked.
func (s *SuggestionService) Process(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("document gone before processing started", "document", documentID)
		return nil
	}
	if err != nil {
		return err
	}
	if doc.Status != models.DocumentStatusProcessing {
		s.logger.Info("document no longer queued for processing, skipping",
			"document", documentID, "status", doc.Status)
		return nil
	}

	res, err := s.extractor.Extract(s.store.Path(doc.OriginalFile))
	if err != nil {
		s.logger.Warn("extraction failed", "document", doc.ID, "error", err)
		s.park(ctx, doc)
		return nil
	}

	model, modelID, err := s.registry.Active(ctx)
	if err != nil {
		s.park(ctx, doc)
		if errors.Is(err, domain.ErrNoActiveModel) {
			return err
		}
		return err
	}

	entities := s.detector.Detect(model, res.Text)

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		for _, e := range entities {
			red := &models.Redaction{
				DocumentID:   doc.ID,
				StartChar:    e.Start,
				EndChar:      e.End,
				Text:         e.Text,
				Type:         detect.RedactionTypeForLabel(e.Label),
				IsSuggestion: true,
			}
			if err := s.redactionRepo.Create(txCtx, red); err != nil {
				return err
			}
		}
		doc.ExtractedText = &res.Text
		doc.Tables = res.Tables
		doc.Structure = res.Structure
		doc.ModelID = &modelID
		doc.ProcessingTaskKey = nil
		doc.Status = models.DocumentStatusReadyForReview
		return s.docRepo.Update(txCtx, doc)
	})
	if err != nil {
		s.park(ctx, doc)
		return err
	}

	s.logger.Info("document processed",
		"document", doc.ID,
		"chars", len(res.Text),
		"suggestions", len(entities),
	)
	return nil
}

// park moves a document to ERROR, best effort.
func (s *SuggestionService) park(ctx context.Context, doc *models.Document) {
	doc.Status = models.DocumentStatusError
	doc.ProcessingTaskKey = nil
	if err := s.docRepo.Update(ctx, doc); err != nil {
		s.logger.Error("could not mark document as errored", "document", doc.ID, "error", err)
	}
}
