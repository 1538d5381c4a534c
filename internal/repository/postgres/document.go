package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
)

// PostgresDocumentRepository implements the DocumentRepository
// interface.
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(config *RepositoryConfig) repositories.DocumentRepository {
	return &PostgresDocumentRepository{pool: config.Pool, logger: config.Logger}
}

const documentColumns = `id, case_id, original_file, filename, file_type, status,
	extracted_text, extracted_tables, extracted_structure, model_id, processing_task_key, uploaded_at`

func scanDocument(row pgx.Row, doc *models.Document) error {
	var tablesJSON, structureJSON []byte
	if err := row.Scan(
		&doc.ID,
		&doc.CaseID,
		&doc.OriginalFile,
		&doc.Filename,
		&doc.FileType,
		&doc.Status,
		&doc.ExtractedText,
		&tablesJSON,
		&structureJSON,
		&doc.ModelID,
		&doc.ProcessingTaskKey,
		&doc.UploadedAt,
	); err != nil {
		return err
	}
	if len(tablesJSON) > 0 {
		if err := json.Unmarshal(tablesJSON, &doc.Tables); err != nil {
			return fmt.Errorf("decode extracted_tables: %w", err)
		}
	}
	if len(structureJSON) > 0 {
		if err := json.Unmarshal(structureJSON, &doc.Structure); err != nil {
			return fmt.Errorf("decode extracted_structure: %w", err)
		}
	}
	return nil
}

func marshalDocumentMeta(doc *models.Document) (tablesJSON, structureJSON []byte, err error) {
	if doc.Tables != nil {
		if tablesJSON, err = json.Marshal(doc.Tables); err != nil {
			return nil, nil, fmt.Errorf("encode extracted_tables: %w", err)
		}
	}
	if doc.Structure != nil {
		if structureJSON, err = json.Marshal(doc.Structure); err != nil {
			return nil, nil, fmt.Errorf("encode extracted_structure: %w", err)
		}
	}
	return tablesJSON, structureJSON, nil
}

// Create creates a new document. Filename and file type are written
// here and never again.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	tablesJSON, structureJSON, err := marshalDocumentMeta(doc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (case_id, original_file, filename, file_type, status,
			extracted_text, extracted_tables, extracted_structure, model_id, processing_task_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, uploaded_at
	`

	executor := GetExecutor(ctx, r.pool)
	err = executor.QueryRow(ctx, query,
		doc.CaseID,
		doc.OriginalFile,
		doc.Filename,
		doc.FileType,
		doc.Status,
		doc.ExtractedText,
		tablesJSON,
		structureJSON,
		doc.ModelID,
		doc.ProcessingTaskKey,
	).Scan(&doc.ID, &doc.UploadedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("case %s: %w", doc.CaseID, domain.ErrNotFound)
		}
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by ID.
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	var doc models.Document
	executor := GetExecutor(ctx, r.pool)
	if err := scanDocument(executor.QueryRow(ctx, query, id), &doc); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &doc, nil
}

// ListByCase lists all documents of a case in upload order.
func (r *PostgresDocumentRepository) ListByCase(ctx context.Context, caseID string) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE case_id = $1 ORDER BY uploaded_at`
	return r.queryDocuments(ctx, query, caseID)
}

// ListSiblings lists documents of the same case excluding one
// document, restricted to the given statuses.
func (r *PostgresDocumentRepository) ListSiblings(ctx context.Context, caseID, excludeID string, statuses []models.DocumentStatus) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		WHERE case_id = $1 AND id <> $2 AND status = ANY($3) ORDER BY uploaded_at`

	statusStrings := make([]string, len(statuses))
	for i, s := range statuses {
		statusStrings[i] = string(s)
	}

	return r.queryDocuments(ctx, query, caseID, excludeID, statusStrings)
}

// ListByStatus lists all documents currently in the given status.
func (r *PostgresDocumentRepository) ListByStatus(ctx context.Context, status models.DocumentStatus) ([]models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE status = $1 ORDER BY uploaded_at`
	return r.queryDocuments(ctx, query, status)
}

func (r *PostgresDocumentRepository) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]models.Document, error) {
	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := scanDocument(rows, &doc); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Update persists a document's mutable fields. Filename, file type,
// case and original file reference are immutable after creation.
func (r *PostgresDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	tablesJSON, structureJSON, err := marshalDocumentMeta(doc)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET status = $2, extracted_text = $3, extracted_tables = $4,
			extracted_structure = $5, model_id = $6, processing_task_key = $7
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		doc.ID,
		doc.Status,
		doc.ExtractedText,
		tablesJSON,
		structureJSON,
		doc.ModelID,
		doc.ProcessingTaskKey,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete deletes a document; redactions cascade via foreign keys.
func (r *PostgresDocumentRepository) Delete(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
