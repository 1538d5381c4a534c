package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"blackline/internal/detect"
	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
	"blackline/internal/filestore"
	"blackline/internal/tasks"
)

// TrainingService manages training documents, training run kick-off
// and the model catalogue.
type TrainingService struct {
	trainingDocs repositories.TrainingDocumentRepository
	runRepo      repositories.TrainingRunRepository
	modelRepo    repositories.ModelRepository
	registry     *detect.Registry
	store        *filestore.LocalStore
	queue        TaskQueue
	logger       *slog.Logger
}

// NewTrainingService creates a new training service.
func NewTrainingService(
	trainingDocs repositories.TrainingDocumentRepository,
	runRepo repositories.TrainingRunRepository,
	modelRepo repositories.ModelRepository,
	registry *detect.Registry,
	store *filestore.LocalStore,
	queue TaskQueue,
	logger *slog.Logger,
) *TrainingService {
	return &TrainingService{
		trainingDocs: trainingDocs,
		runRepo:      runRepo,
		modelRepo:    modelRepo,
		registry:     registry,
		store:        store,
		queue:        queue,
		logger:       logger,
	}
}

// UploadTrainingDocument stores a highlighted DOCX as ground truth.
func (s *TrainingService) UploadTrainingDocument(ctx context.Context, uploadName string, createdBy *string, r io.Reader) (*models.TrainingDocument, error) {
	name := filepath.Base(uploadName)
	if !strings.EqualFold(filepath.Ext(name), ".docx") {
		return nil, &domain.ValidationError{Message: "training documents must be DOCX files"}
	}

	rel, err := s.store.Save(r, "training", name)
	if err != nil {
		return nil, fmt.Errorf("store training document: %w", err)
	}

	doc := &models.TrainingDocument{
		Name:         name,
		OriginalFile: rel,
		CreatedBy:    createdBy,
	}
	if err := s.trainingDocs.Create(ctx, doc); err != nil {
		s.store.Remove(rel)
		return nil, err
	}
	s.logger.Info("training document uploaded", "training_document", doc.ID, "name", name)
	return doc, nil
}

// ListTrainingDocuments returns all training documents.
func (s *TrainingService) ListTrainingDocuments(ctx context.Context) ([]models.TrainingDocument, error) {
	return s.trainingDocs.List(ctx)
}

// DeleteTrainingDocument removes a training document and its file.
func (s *TrainingService) DeleteTrainingDocument(ctx context.Context, id string) error {
	doc, err := s.trainingDocs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.trainingDocs.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Remove(doc.OriginalFile); err != nil {
		s.logger.Warn("training file not removed", "training_document", id, "error", err)
	}
	return nil
}

// StartTraining schedules a training run. Training is single-flight:
// while one run is queued or executing, further requests are refused.
func (s *TrainingService) StartTraining(ctx context.Context, source models.TrainingSource) (string, error) {
	if !source.Valid() {
		return "", &domain.ValidationError{Message: fmt.Sprintf("unknown training source %q", source)}
	}
	if s.queue.CountActive(tasks.OpTrainingRun) > 0 {
		return "", &domain.ConflictError{Message: domain.ErrTrainingInFlight.Error()}
	}

	key, err := s.queue.Enqueue(tasks.OpTrainingRun, string(source))
	if err != nil {
		return "", err
	}
	s.logger.Info("training scheduled", "source", source, "task_key", key)
	return key, nil
}

// ListTrainingRuns returns all runs with provenance.
func (s *TrainingService) ListTrainingRuns(ctx context.Context) ([]models.TrainingRun, error) {
	return s.runRepo.List(ctx)
}

// ListModels returns the model catalogue.
func (s *TrainingService) ListModels(ctx context.Context) ([]models.Model, error) {
	return s.modelRepo.List(ctx)
}

// GetModel returns one model.
func (s *TrainingService) GetModel(ctx context.Context, id string) (*models.Model, error) {
	return s.modelRepo.GetByID(ctx, id)
}

// ActivateModel makes the given model the one the pipeline uses.
func (s *TrainingService) ActivateModel(ctx context.Context, id string) (*models.Model, error) {
	if _, err := s.modelRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.registry.Activate(ctx, id); err != nil {
		return nil, err
	}
	return s.modelRepo.GetByID(ctx, id)
}

// DeleteModel removes a model version, its files, and resets the
// training documents its run consumed. The active model cannot be
// deleted out from under the pipeline.
func (s *TrainingService) DeleteModel(ctx context.Context, id string) error {
	m, err := s.modelRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if m.IsActive {
		return &domain.ConflictError{Message: "cannot delete the active model, activate another first"}
	}

	if err := s.modelRepo.Delete(ctx, id); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Dir(m.Path)); err != nil {
		s.logger.Warn("model files not removed", "model", m.Name, "error", err)
	}
	s.registry.Invalidate()
	s.logger.Info("model deleted", "model", m.Name)
	return nil
}
