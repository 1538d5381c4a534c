package repositories

import (
	"context"

	"blackline/internal/domain/models"
)

// ModelRepository defines data access operations for detector model
// versions.
type ModelRepository interface {
	// Create registers a new model version.
	Create(ctx context.Context, m *models.Model) error

	// GetByID retrieves a model by ID.
	GetByID(ctx context.Context, id string) (*models.Model, error)

	// GetByName retrieves a model by its unique name.
	GetByName(ctx context.Context, name string) (*models.Model, error)

	// GetActive returns the currently active model, or ErrNotFound
	// when none is active.
	GetActive(ctx context.Context) (*models.Model, error)

	// List returns all models, newest first.
	List(ctx context.Context) ([]models.Model, error)

	// SetActive atomically deactivates every model and activates the
	// one with the given ID.
	SetActive(ctx context.Context, id string) error

	// Delete deletes a model. Cascades to its training run; linked
	// training documents are reset to unprocessed.
	Delete(ctx context.Context, id string) error
}
