package repositories

import (
	"context"

	"blackline/internal/domain/models"
)

// DocumentRepository defines data access operations for case documents.
type DocumentRepository interface {
	// Create creates a new document.
	Create(ctx context.Context, doc *models.Document) error

	// GetByID retrieves a document by ID.
	GetByID(ctx context.Context, id string) (*models.Document, error)

	// ListByCase lists all documents of a case in upload order.
	ListByCase(ctx context.Context, caseID string) ([]models.Document, error)

	// ListSiblings lists documents of the same case excluding one
	// document, restricted to the given statuses.
	ListSiblings(ctx context.Context, caseID, excludeID string, statuses []models.DocumentStatus) ([]models.Document, error)

	// ListByStatus lists all documents currently in the given status,
	// across cases.
	ListByStatus(ctx context.Context, status models.DocumentStatus) ([]models.Document, error)

	// Update persists a document's mutable fields. Filename and file
	// type are write-once and not part of the update set.
	Update(ctx context.Context, doc *models.Document) error

	// Delete deletes a document and cascades to its redactions.
	Delete(ctx context.Context, id string) error
}
