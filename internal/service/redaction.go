package service

import (
	"context"
	"fmt"
	"log/slog"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
	"blackline/internal/tasks"
)

// RedactionService manages reviewer edits to redactions: manual
// creation, accepting or rejecting suggestions, and disclosure
// contexts.
type RedactionService struct {
	redactionRepo repositories.RedactionRepository
	docRepo       repositories.DocumentRepository
	queue         TaskQueue
	logger        *slog.Logger
}

// NewRedactionService creates a new redaction service.
func NewRedactionService(
	redactionRepo repositories.RedactionRepository,
	docRepo repositories.DocumentRepository,
	queue TaskQueue,
	logger *slog.Logger,
) *RedactionService {
	return &RedactionService{
		redactionRepo: redactionRepo,
		docRepo:       docRepo,
		queue:         queue,
		logger:        logger,
	}
}

var redactionTypes = map[models.RedactionType]bool{
	models.RedactionTypeOperationalData: true,
	models.RedactionTypeThirdPartyPII:   true,
	models.RedactionTypeDataSubjectInfo: true,
}

// CreateRedactionInput carries a manual redaction request.
type CreateRedactionInput struct {
	StartChar     int                  `json:"start_char"`
	EndChar       int                  `json:"end_char"`
	Type          models.RedactionType `json:"redaction_type"`
	Justification *string              `json:"justification"`
}

// Create adds a reviewer-authored redaction. The range must lie within
// the document's extracted text; the covered text is captured from the
// document, not supplied by the client.
func (s *RedactionService) Create(ctx context.Context, documentID string, in CreateRedactionInput) (*models.Redaction, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	text := doc.Text()
	if text == "" {
		return nil, &domain.ValidationError{Message: "document has no extracted text to redact"}
	}
	if err := validateRange(in.StartChar, in.EndChar, len(text)); err != nil {
		return nil, err
	}
	if !redactionTypes[in.Type] {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown redaction type %q", in.Type)}
	}

	red := &models.Redaction{
		DocumentID:    documentID,
		StartChar:     in.StartChar,
		EndChar:       in.EndChar,
		Text:          text[in.StartChar:in.EndChar],
		Type:          in.Type,
		Justification: in.Justification,
		IsSuggestion:  false,
		IsAccepted:    true,
	}
	if err := s.redactionRepo.Create(ctx, red); err != nil {
		return nil, err
	}

	s.maybePropagate(red)
	s.logger.Info("redaction created",
		"redaction", red.ID, "document", documentID, "type", red.Type)
	return red, nil
}

func validateRange(start, end, textLen int) error {
	if start < 0 || end > textLen || start >= end {
		return &domain.ValidationError{
			Message: fmt.Sprintf("redaction range [%d,%d) is invalid for text of length %d", start, end, textLen),
		}
	}
	return nil
}

// GetRedaction returns one redaction with its context joined.
func (s *RedactionService) GetRedaction(ctx context.Context, id string) (*models.Redaction, error) {
	return s.redactionRepo.GetByID(ctx, id)
}

// ListByDocument returns a document's redactions in text order.
func (s *RedactionService) ListByDocument(ctx context.Context, documentID string) ([]models.Redaction, error) {
	if _, err := s.docRepo.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.redactionRepo.ListByDocument(ctx, documentID)
}

// UpdateRedactionInput carries the fields a reviewer may change on an
// existing redaction. Offsets are immutable; a misplaced redaction is
// deleted and recreated.
type UpdateRedactionInput struct {
	Type          *models.RedactionType `json:"redaction_type"`
	IsAccepted    *bool                 `json:"is_accepted"`
	Justification *string               `json:"justification"`
}

// Update applies reviewer changes. Reclassifying a span as
// data-subject information triggers propagation across the case.
func (s *RedactionService) Update(ctx context.Context, id string, in UpdateRedactionInput) (*models.Redaction, error) {
	red, err := s.redactionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	becameDS := false
	if in.Type != nil {
		if !redactionTypes[*in.Type] {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown redaction type %q", *in.Type)}
		}
		becameDS = *in.Type == models.RedactionTypeDataSubjectInfo && red.Type != models.RedactionTypeDataSubjectInfo
		red.Type = *in.Type
	}
	if in.IsAccepted != nil {
		red.IsAccepted = *in.IsAccepted
	}
	if in.Justification != nil {
		red.Justification = in.Justification
	}

	if err := s.redactionRepo.Update(ctx, red); err != nil {
		return nil, err
	}
	if becameDS {
		s.maybePropagate(red)
	}
	return red, nil
}

// Delete removes a redaction.
func (s *RedactionService) Delete(ctx context.Context, id string) error {
	if _, err := s.redactionRepo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.redactionRepo.Delete(ctx, id)
}

// SetContext attaches or replaces the disclosure context shown in
// place of the redacted text.
func (s *RedactionService) SetContext(ctx context.Context, redactionID, text string) (*models.Redaction, bool, error) {
	if text == "" {
		return nil, false, &domain.ValidationError{Message: "context text cannot be empty"}
	}
	if _, err := s.redactionRepo.GetByID(ctx, redactionID); err != nil {
		return nil, false, err
	}

	created, err := s.redactionRepo.UpsertContext(ctx, &models.RedactionContext{
		RedactionID: redactionID,
		Text:        text,
	})
	if err != nil {
		return nil, false, err
	}
	red, err := s.redactionRepo.GetByID(ctx, redactionID)
	if err != nil {
		return nil, false, err
	}
	return red, created, nil
}

// DeleteContext removes a redaction's disclosure context.
func (s *RedactionService) DeleteContext(ctx context.Context, redactionID string) error {
	if _, err := s.redactionRepo.GetByID(ctx, redactionID); err != nil {
		return err
	}
	return s.redactionRepo.DeleteContext(ctx, redactionID)
}

// maybePropagate schedules case-wide propagation for data-subject
// redactions. Scheduling failure is logged, not surfaced: the
// redaction itself was saved.
func (s *RedactionService) maybePropagate(red *models.Redaction) {
	if red.Type != models.RedactionTypeDataSubjectInfo {
		return
	}
	if _, err := s.queue.Enqueue(tasks.OpRedactionPropagate, red.ID); err != nil {
		s.logger.Error("could not schedule propagation", "redaction", red.ID, "error", err)
	}
}
