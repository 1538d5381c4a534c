package repositories

import (
	"context"

	"blackline/internal/domain/models"
)

// RedactionRepository defines data access operations for redactions
// and their optional disclosure contexts.
type RedactionRepository interface {
	// Create creates a new redaction.
	Create(ctx context.Context, r *models.Redaction) error

	// GetByID retrieves a redaction by ID.
	GetByID(ctx context.Context, id string) (*models.Redaction, error)

	// ListByDocument lists a document's redactions ordered by start
	// offset, contexts joined.
	ListByDocument(ctx context.Context, documentID string) ([]models.Redaction, error)

	// ListAccepted lists a document's accepted redactions ordered by
	// start offset, contexts joined.
	ListAccepted(ctx context.Context, documentID string) ([]models.Redaction, error)

	// FindByRange returns the redactions occupying exactly the given
	// offset range in a document.
	FindByRange(ctx context.Context, documentID string, startChar, endChar int) ([]models.Redaction, error)

	// Update updates a redaction.
	Update(ctx context.Context, r *models.Redaction) error

	// Delete deletes a redaction.
	Delete(ctx context.Context, id string) error

	// DeleteByDocument deletes every redaction of a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// UpsertContext creates or replaces the context attached to a
	// redaction. Returns true when a new context row was created.
	UpsertContext(ctx context.Context, rc *models.RedactionContext) (bool, error)

	// DeleteContext removes the context attached to a redaction.
	DeleteContext(ctx context.Context, redactionID string) error
}
