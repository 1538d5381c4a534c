package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
	"blackline/internal/export"
	"blackline/internal/filestore"
	"blackline/internal/tasks"
)

// CaseService manages the case lifecycle: creation with retention
// scheduling, export kick-off, and the retention sweep.
type CaseService struct {
	caseRepo       repositories.CaseRepository
	docRepo        repositories.DocumentRepository
	store          *filestore.LocalStore
	queue          TaskQueue
	logger         *slog.Logger
	retentionYears int

	now func() time.Time
}

// NewCaseService creates a new case service.
func NewCaseService(
	caseRepo repositories.CaseRepository,
	docRepo repositories.DocumentRepository,
	store *filestore.LocalStore,
	queue TaskQueue,
	retentionYears int,
	logger *slog.Logger,
) *CaseService {
	return &CaseService{
		caseRepo:       caseRepo,
		docRepo:        docRepo,
		store:          store,
		queue:          queue,
		retentionYears: retentionYears,
		logger:         logger,
		now:            time.Now,
	}
}

// CreateCaseInput carries the reviewer-supplied fields of a new case.
type CreateCaseInput struct {
	CaseReference   string     `json:"case_reference"`
	DataSubjectName string     `json:"data_subject_name"`
	DataSubjectDOB  *time.Time `json:"data_subject_dob"`
	CreatedBy       *string    `json:"-"`
}

// Validate checks the input fields.
func (in CreateCaseInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CaseReference, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.DataSubjectName, validation.Required, validation.Length(1, 255)),
	)
}

// CreateCase opens a new case. The retention review date is computed
// here, once, and never recomputed on later updates.
func (s *CaseService) CreateCase(ctx context.Context, in CreateCaseInput) (*models.Case, error) {
	if err := in.Validate(); err != nil {
		return nil, &domain.ValidationError{Message: err.Error()}
	}

	c := &models.Case{
		CaseReference:       in.CaseReference,
		Status:              models.CaseStatusOpen,
		DataSubjectName:     in.DataSubjectName,
		DataSubjectDOB:      in.DataSubjectDOB,
		CreatedBy:           in.CreatedBy,
		RetentionReviewDate: models.RetentionReviewDate(in.DataSubjectDOB, s.now(), s.retentionYears),
		ExportStatus:        models.ExportStatusNone,
	}
	if err := s.caseRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("case created",
		"case", c.ID,
		"case_reference", c.CaseReference,
		"retention_review", c.RetentionReviewDate.Format("2006-01-02"),
	)
	return c, nil
}

// GetCase returns one case.
func (s *CaseService) GetCase(ctx context.Context, id string) (*models.Case, error) {
	return s.caseRepo.GetByID(ctx, id)
}

// ListCases returns all cases, newest first.
func (s *CaseService) ListCases(ctx context.Context) ([]models.Case, error) {
	return s.caseRepo.List(ctx)
}

// UpdateCaseInput carries the mutable case fields.
type UpdateCaseInput struct {
	Status          *models.CaseStatus `json:"status"`
	DataSubjectName *string            `json:"data_subject_name"`
}

var caseStatuses = map[models.CaseStatus]bool{
	models.CaseStatusOpen:        true,
	models.CaseStatusInProgress:  true,
	models.CaseStatusCompleted:   true,
	models.CaseStatusClosed:      true,
	models.CaseStatusWithdrawn:   true,
	models.CaseStatusUnderReview: true,
	models.CaseStatusError:       true,
}

// UpdateCase applies reviewer edits. The case reference and retention
// review date are immutable.
func (s *CaseService) UpdateCase(ctx context.Context, id string, in UpdateCaseInput) (*models.Case, error) {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Status != nil {
		if !caseStatuses[*in.Status] {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown case status %q", *in.Status)}
		}
		c.Status = *in.Status
	}
	if in.DataSubjectName != nil {
		if *in.DataSubjectName == "" {
			return nil, &domain.ValidationError{Message: "data_subject_name cannot be empty"}
		}
		c.DataSubjectName = *in.DataSubjectName
	}

	if err := s.caseRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCase removes a case, its documents and their stored files.
func (s *CaseService) DeleteCase(ctx context.Context, id string) error {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	docs, err := s.docRepo.ListByCase(ctx, id)
	if err != nil {
		return err
	}
	if err := s.caseRepo.Delete(ctx, id); err != nil {
		return err
	}

	for _, d := range docs {
		if err := s.store.Remove(d.OriginalFile); err != nil {
			s.logger.Warn("stored file not removed", "document", d.ID, "error", err)
		}
	}
	if c.ExportFile != nil {
		if err := s.store.Remove(*c.ExportFile); err != nil {
			s.logger.Warn("export file not removed", "case", id, "error", err)
		}
	}

	s.logger.Info("case deleted", "case", id, "case_reference", c.CaseReference)
	return nil
}

// StartExport validates readiness and schedules disclosure package
// generation. Every document of the case must have finished review.
func (s *CaseService) StartExport(ctx context.Context, id string) (*models.Case, error) {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ExportStatus == models.ExportStatusProcessing {
		return nil, &domain.ConflictError{Message: "an export is already being generated for this case"}
	}

	docs, err := s.docRepo.ListByCase(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, &domain.ValidationError{Message: "case has no documents to export"}
	}
	for _, d := range docs {
		if d.Status != models.DocumentStatusCompleted {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("document %s is %s, all documents must be COMPLETED before export", d.Filename, d.Status),
			}
		}
	}

	key, err := s.queue.Enqueue(tasks.OpCaseExport, c.ID)
	if err != nil {
		return nil, err
	}
	c.ExportStatus = models.ExportStatusProcessing
	c.ExportTaskKey = &key
	if err := s.caseRepo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("export scheduled", "case", c.ID, "task_key", key)
	return c, nil
}

// OpenExport opens the finished disclosure package for download.
func (s *CaseService) OpenExport(ctx context.Context, id string) (io.ReadCloser, string, error) {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if c.ExportStatus != models.ExportStatusCompleted || c.ExportFile == nil {
		return nil, "", &domain.NotFoundError{Message: "no disclosure package has been generated for this case"}
	}
	f, err := s.store.Open(*c.ExportFile)
	if err != nil {
		return nil, "", fmt.Errorf("open export file: %w", err)
	}
	return f, export.ArchiveName(c.CaseReference), nil
}

// SweepExpired deletes every case whose retention review date has
// passed. Runs on a schedule; errors on individual cases are logged
// and do not stop the sweep.
func (s *CaseService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.caseRepo.ListPastRetention(ctx, s.now())
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, c := range expired {
		if err := s.DeleteCase(ctx, c.ID); err != nil {
			s.logger.Error("retention sweep could not delete case",
				"case", c.ID, "case_reference", c.CaseReference, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("retention sweep finished", "deleted", deleted)
	}
	return deleted, nil
}
