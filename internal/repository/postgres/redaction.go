package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
)

// PostgresRedactionRepository implements the RedactionRepository
// interface.
type PostgresRedactionRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRedactionRepository creates a new redaction repository.
func NewRedactionRepository(config *RepositoryConfig) repositories.RedactionRepository {
	return &PostgresRedactionRepository{pool: config.Pool, logger: config.Logger}
}

const redactionColumns = `r.id, r.document_id, r.start_char, r.end_char, r.text,
	r.redaction_type, r.justification, r.is_suggestion, r.is_accepted, r.created_at,
	rc.redaction_id, rc.text`

func scanRedaction(row pgx.Row, red *models.Redaction) error {
	var ctxID, ctxText *string
	if err := row.Scan(
		&red.ID,
		&red.DocumentID,
		&red.StartChar,
		&red.EndChar,
		&red.Text,
		&red.Type,
		&red.Justification,
		&red.IsSuggestion,
		&red.IsAccepted,
		&red.CreatedAt,
		&ctxID,
		&ctxText,
	); err != nil {
		return err
	}
	if ctxID != nil && ctxText != nil {
		red.Context = &models.RedactionContext{RedactionID: *ctxID, Text: *ctxText}
	}
	return nil
}

// Create creates a new redaction.
func (r *PostgresRedactionRepository) Create(ctx context.Context, red *models.Redaction) error {
	query := `
		INSERT INTO redactions (document_id, start_char, end_char, text, redaction_type,
			justification, is_suggestion, is_accepted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		red.DocumentID,
		red.StartChar,
		red.EndChar,
		red.Text,
		red.Type,
		red.Justification,
		red.IsSuggestion,
		red.IsAccepted,
	).Scan(&red.ID, &red.CreatedAt)

	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("document %s: %w", red.DocumentID, domain.ErrNotFound)
		}
		return fmt.Errorf("create redaction: %w", err)
	}

	return nil
}

// GetByID retrieves a redaction by ID, context joined.
func (r *PostgresRedactionRepository) GetByID(ctx context.Context, id string) (*models.Redaction, error) {
	query := `
		SELECT ` + redactionColumns + `
		FROM redactions r
		LEFT JOIN redaction_contexts rc ON rc.redaction_id = r.id
		WHERE r.id = $1
	`

	var red models.Redaction
	executor := GetExecutor(ctx, r.pool)
	if err := scanRedaction(executor.QueryRow(ctx, query, id), &red); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("redaction %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get redaction: %w", err)
	}

	return &red, nil
}

// ListByDocument lists a document's redactions ordered by start offset.
func (r *PostgresRedactionRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Redaction, error) {
	query := `
		SELECT ` + redactionColumns + `
		FROM redactions r
		LEFT JOIN redaction_contexts rc ON rc.redaction_id = r.id
		WHERE r.document_id = $1
		ORDER BY r.start_char
	`
	return r.queryRedactions(ctx, query, documentID)
}

// ListAccepted lists a document's accepted redactions ordered by start
// offset.
func (r *PostgresRedactionRepository) ListAccepted(ctx context.Context, documentID string) ([]models.Redaction, error) {
	query := `
		SELECT ` + redactionColumns + `
		FROM redactions r
		LEFT JOIN redaction_contexts rc ON rc.redaction_id = r.id
		WHERE r.document_id = $1 AND r.is_accepted
		ORDER BY r.start_char
	`
	return r.queryRedactions(ctx, query, documentID)
}

// FindByRange returns the redactions occupying exactly the given
// offset range in a document.
func (r *PostgresRedactionRepository) FindByRange(ctx context.Context, documentID string, startChar, endChar int) ([]models.Redaction, error) {
	query := `
		SELECT ` + redactionColumns + `
		FROM redactions r
		LEFT JOIN redaction_contexts rc ON rc.redaction_id = r.id
		WHERE r.document_id = $1 AND r.start_char = $2 AND r.end_char = $3
		ORDER BY r.created_at
	`
	return r.queryRedactions(ctx, query, documentID, startChar, endChar)
}

func (r *PostgresRedactionRepository) queryRedactions(ctx context.Context, query string, args ...interface{}) ([]models.Redaction, error) {
	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list redactions: %w", err)
	}
	defer rows.Close()

	var reds []models.Redaction
	for rows.Next() {
		var red models.Redaction
		if err := scanRedaction(rows, &red); err != nil {
			return nil, fmt.Errorf("scan redaction: %w", err)
		}
		reds = append(reds, red)
	}

	return reds, rows.Err()
}

// Update updates a redaction.
func (r *PostgresRedactionRepository) Update(ctx context.Context, red *models.Redaction) error {
	query := `
		UPDATE redactions
		SET start_char = $2, end_char = $3, text = $4, redaction_type = $5,
			justification = $6, is_suggestion = $7, is_accepted = $8
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		red.ID,
		red.StartChar,
		red.EndChar,
		red.Text,
		red.Type,
		red.Justification,
		red.IsSuggestion,
		red.IsAccepted,
	)
	if err != nil {
		return fmt.Errorf("update redaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("redaction %s: %w", red.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete deletes a redaction.
func (r *PostgresRedactionRepository) Delete(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, `DELETE FROM redactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete redaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("redaction %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// DeleteByDocument deletes every redaction of a document.
func (r *PostgresRedactionRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, `DELETE FROM redactions WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete redactions for document %s: %w", documentID, err)
	}
	return nil
}

// UpsertContext creates or replaces the context attached to a
// redaction.
func (r *PostgresRedactionRepository) UpsertContext(ctx context.Context, rc *models.RedactionContext) (bool, error) {
	query := `
		INSERT INTO redaction_contexts (redaction_id, text)
		VALUES ($1, $2)
		ON CONFLICT (redaction_id) DO UPDATE SET text = EXCLUDED.text
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, rc.RedactionID, rc.Text).Scan(&inserted)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return false, fmt.Errorf("redaction %s: %w", rc.RedactionID, domain.ErrNotFound)
		}
		return false, fmt.Errorf("upsert redaction context: %w", err)
	}

	return inserted, nil
}

// DeleteContext removes the context attached to a redaction.
func (r *PostgresRedactionRepository) DeleteContext(ctx context.Context, redactionID string) error {
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, `DELETE FROM redaction_contexts WHERE redaction_id = $1`, redactionID)
	if err != nil {
		return fmt.Errorf("delete redaction context: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("context for redaction %s: %w", redactionID, domain.ErrNotFound)
	}

	return nil
}
