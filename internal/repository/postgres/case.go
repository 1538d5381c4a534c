package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blackline/internal/domain"
	"blackline/internal/domain/models"
	"blackline/internal/domain/repositories"
)

// PostgresCaseRepository implements the CaseRepository interface.
type PostgresCaseRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(config *RepositoryConfig) repositories.CaseRepository {
	return &PostgresCaseRepository{pool: config.Pool, logger: config.Logger}
}

const caseColumns = `id, case_reference, status, data_subject_name, data_subject_dob,
	created_at, created_by, retention_review_date, export_status, export_file, export_task_key`

func scanCase(row pgx.Row, c *models.Case) error {
	return row.Scan(
		&c.ID,
		&c.CaseReference,
		&c.Status,
		&c.DataSubjectName,
		&c.DataSubjectDOB,
		&c.CreatedAt,
		&c.CreatedBy,
		&c.RetentionReviewDate,
		&c.ExportStatus,
		&c.ExportFile,
		&c.ExportTaskKey,
	)
}

// Create creates a new case.
func (r *PostgresCaseRepository) Create(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO cases (case_reference, status, data_subject_name, data_subject_dob,
			created_by, retention_review_date, export_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		c.CaseReference,
		c.Status,
		c.DataSubjectName,
		c.DataSubjectDOB,
		c.CreatedBy,
		c.RetentionReviewDate,
		c.ExportStatus,
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("case reference %q already exists: %w", c.CaseReference, domain.ErrConflict)
		}
		return fmt.Errorf("create case: %w", err)
	}

	return nil
}

// GetByID retrieves a case by ID.
func (r *PostgresCaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	var c models.Case
	executor := GetExecutor(ctx, r.pool)
	if err := scanCase(executor.QueryRow(ctx, query, id), &c); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get case: %w", err)
	}

	return &c, nil
}

// List returns all cases, newest first.
func (r *PostgresCaseRepository) List(ctx context.Context) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases ORDER BY created_at DESC`

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		var c models.Case
		if err := scanCase(rows, &c); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}

// Update updates a case's mutable fields. The retention review date is
// deliberately excluded: it is computed once at creation.
func (r *PostgresCaseRepository) Update(ctx context.Context, c *models.Case) error {
	query := `
		UPDATE cases
		SET status = $2, data_subject_name = $3, data_subject_dob = $4,
			export_status = $5, export_file = $6, export_task_key = $7
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		c.ID,
		c.Status,
		c.DataSubjectName,
		c.DataSubjectDOB,
		c.ExportStatus,
		c.ExportFile,
		c.ExportTaskKey,
	)
	if err != nil {
		return fmt.Errorf("update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case %s: %w", c.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete deletes a case; documents and redactions cascade via foreign
// keys.
func (r *PostgresCaseRepository) Delete(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ListPastRetention returns cases whose retention review date is
// strictly before the given day.
func (r *PostgresCaseRepository) ListPastRetention(ctx context.Context, day time.Time) ([]models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE retention_review_date < $1 ORDER BY retention_review_date`

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("list cases past retention: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		var c models.Case
		if err := scanCase(rows, &c); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}

	return cases, rows.Err()
}
