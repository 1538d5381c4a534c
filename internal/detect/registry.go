package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"blackline/internal/domain"
	"blackline/internal/domain/repositories"
)

// Registry hands out the currently active span model, loading it from
// disk on first use and again whenever the active model changes.
type Registry struct {
	repo   repositories.ModelRepository
	logger *slog.Logger

	mu       sync.Mutex
	loaded   *SpanModel
	loadedID string
}

// NewRegistry creates a registry backed by the model repository.
func NewRegistry(repo repositories.ModelRepository, logger *slog.Logger) *Registry {
	return &Registry{repo: repo, logger: logger}
}

// Active returns the active model and its database ID. Returns
// domain.ErrNoActiveModel when no model is marked active.
func (r *Registry) Active(ctx context.Context) (*SpanModel, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.repo.GetActive(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "", domain.ErrNoActiveModel
	}
	if err != nil {
		return nil, "", err
	}

	if r.loaded != nil && r.loadedID == rec.ID {
		return r.loaded, r.loadedID, nil
	}

	model, err := LoadSpanModel(rec.Path)
	if err != nil {
		return nil, "", fmt.Errorf("load active model %s: %w", rec.Name, err)
	}
	r.loaded = model
	r.loadedID = rec.ID
	r.logger.Info("span model loaded", "model", rec.Name, "path", rec.Path)
	return model, rec.ID, nil
}

// Activate marks the model active in the database and swaps the loaded
// model on success. The swap is eager so a load failure surfaces here
// rather than on the next detection run.
func (r *Registry) Activate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.repo.SetActive(ctx, id); err != nil {
		return err
	}

	rec, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	model, err := LoadSpanModel(rec.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	r.loaded = model
	r.loadedID = rec.ID
	r.logger.Info("span model activated", "model", rec.Name)
	return nil
}

// Invalidate drops the cached model, forcing a reload on next use.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = nil
	r.loadedID = ""
}
