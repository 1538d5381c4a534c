package repositories

import (
	"context"
	"time"

	"blackline/internal/domain/models"
)

// CaseRepository defines data access operations for cases.
type CaseRepository interface {
	// Create creates a new case.
	Create(ctx context.Context, c *models.Case) error

	// GetByID retrieves a case by ID.
	GetByID(ctx context.Context, id string) (*models.Case, error)

	// List returns all cases, newest first.
	List(ctx context.Context) ([]models.Case, error)

	// Update updates a case's mutable fields (status, subject details,
	// export state). The retention review date is never rewritten.
	Update(ctx context.Context, c *models.Case) error

	// Delete deletes a case and cascades to its documents and
	// redactions.
	Delete(ctx context.Context, id string) error

	// ListPastRetention returns cases whose retention review date is
	// strictly before the given day.
	ListPastRetention(ctx context.Context, day time.Time) ([]models.Case, error)
}
