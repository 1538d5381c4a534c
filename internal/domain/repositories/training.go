package repositories

import (
	"context"

	"blackline/internal/domain/models"
)

// TrainingDocumentRepository defines data access operations for
// manually curated training documents.
type TrainingDocumentRepository interface {
	// Create stores a new training document.
	Create(ctx context.Context, d *models.TrainingDocument) error

	// GetByID retrieves a training document by ID.
	GetByID(ctx context.Context, id string) (*models.TrainingDocument, error)

	// List returns all training documents, newest first.
	List(ctx context.Context) ([]models.TrainingDocument, error)

	// Update persists extracted text and the processed flag.
	Update(ctx context.Context, d *models.TrainingDocument) error

	// Delete deletes a training document.
	Delete(ctx context.Context, id string) error
}

// TrainingRunRepository defines data access operations for training
// runs and their provenance joins.
type TrainingRunRepository interface {
	// Create stores a new training run together with its provenance
	// joins to training documents and case documents.
	Create(ctx context.Context, run *models.TrainingRun) error

	// GetByID retrieves a run with its provenance joins populated.
	GetByID(ctx context.Context, id string) (*models.TrainingRun, error)

	// List returns all runs, newest first, joins populated.
	List(ctx context.Context) ([]models.TrainingRun, error)

	// ResetProcessedByModel flips processed=false on every training
	// document linked to the run of the given model. Called before the
	// model (and, by cascade, the run) is deleted so the documents
	// become eligible for reuse.
	ResetProcessedByModel(ctx context.Context, modelID string) error
}
