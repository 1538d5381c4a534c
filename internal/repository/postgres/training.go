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

// PostgresTrainingDocumentRepository implements the
// TrainingDocumentRepository interface.
type PostgresTrainingDocumentRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTrainingDocumentRepository creates a new training document
// repository.
func NewTrainingDocumentRepository(config *RepositoryConfig) repositories.TrainingDocumentRepository {
	return &PostgresTrainingDocumentRepository{pool: config.Pool, logger: config.Logger}
}

const trainingDocColumns = `id, name, original_file, extracted_text, created_at, created_by, processed`

func scanTrainingDoc(row pgx.Row, d *models.TrainingDocument) error {
	return row.Scan(
		&d.ID,
		&d.Name,
		&d.OriginalFile,
		&d.ExtractedText,
		&d.CreatedAt,
		&d.CreatedBy,
		&d.Processed,
	)
}

// Create stores a new training document.
func (r *PostgresTrainingDocumentRepository) Create(ctx context.Context, d *models.TrainingDocument) error {
	query := `
		INSERT INTO training_documents (name, original_file, extracted_text, created_by, processed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		d.Name,
		d.OriginalFile,
		d.ExtractedText,
		d.CreatedBy,
		d.Processed,
	).Scan(&d.ID, &d.CreatedAt)

	if err != nil {
		return fmt.Errorf("create training document: %w", err)
	}

	return nil
}

// GetByID retrieves a training document by ID.
func (r *PostgresTrainingDocumentRepository) GetByID(ctx context.Context, id string) (*models.TrainingDocument, error) {
	query := `SELECT ` + trainingDocColumns + ` FROM training_documents WHERE id = $1`

	var d models.TrainingDocument
	executor := GetExecutor(ctx, r.pool)
	if err := scanTrainingDoc(executor.QueryRow(ctx, query, id), &d); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("training document %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get training document: %w", err)
	}

	return &d, nil
}

// List returns all training documents, newest first.
func (r *PostgresTrainingDocumentRepository) List(ctx context.Context) ([]models.TrainingDocument, error) {
	query := `SELECT ` + trainingDocColumns + ` FROM training_documents ORDER BY created_at DESC`

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list training documents: %w", err)
	}
	defer rows.Close()

	var docs []models.TrainingDocument
	for rows.Next() {
		var d models.TrainingDocument
		if err := scanTrainingDoc(rows, &d); err != nil {
			return nil, fmt.Errorf("scan training document: %w", err)
		}
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

// Update persists extracted text and the processed flag.
func (r *PostgresTrainingDocumentRepository) Update(ctx context.Context, d *models.TrainingDocument) error {
	query := `UPDATE training_documents SET extracted_text = $2, processed = $3 WHERE id = $1`

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, d.ID, d.ExtractedText, d.Processed)
	if err != nil {
		return fmt.Errorf("update training document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("training document %s: %w", d.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete deletes a training document.
func (r *PostgresTrainingDocumentRepository) Delete(ctx context.Context, id string) error {
	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, `DELETE FROM training_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete training document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("training document %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// PostgresTrainingRunRepository implements the TrainingRunRepository
// interface.
type PostgresTrainingRunRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTrainingRunRepository creates a new training run repository.
func NewTrainingRunRepository(config *RepositoryConfig) repositories.TrainingRunRepository {
	return &PostgresTrainingRunRepository{pool: config.Pool, logger: config.Logger}
}

// Create stores a new training run together with its provenance joins.
func (r *PostgresTrainingRunRepository) Create(ctx context.Context, run *models.TrainingRun) error {
	executor := GetExecutor(ctx, r.pool)

	query := `
		INSERT INTO training_runs (model_id, source)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	if err := executor.QueryRow(ctx, query, run.ModelID, run.Source).Scan(&run.ID, &run.CreatedAt); err != nil {
		return fmt.Errorf("create training run: %w", err)
	}

	for _, docID := range run.TrainingDocumentIDs {
		if _, err := executor.Exec(ctx,
			`INSERT INTO training_run_training_docs (training_run_id, training_document_id) VALUES ($1, $2)`,
			run.ID, docID); err != nil {
			return fmt.Errorf("link training document %s: %w", docID, err)
		}
	}
	for _, docID := range run.CaseDocumentIDs {
		if _, err := executor.Exec(ctx,
			`INSERT INTO training_run_case_docs (training_run_id, document_id) VALUES ($1, $2)`,
			run.ID, docID); err != nil {
			return fmt.Errorf("link case document %s: %w", docID, err)
		}
	}

	return nil
}

// GetByID retrieves a run with its provenance joins populated.
func (r *PostgresTrainingRunRepository) GetByID(ctx context.Context, id string) (*models.TrainingRun, error) {
	query := `SELECT id, model_id, source, created_at FROM training_runs WHERE id = $1`

	var run models.TrainingRun
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(&run.ID, &run.ModelID, &run.Source, &run.CreatedAt)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("training run %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get training run: %w", err)
	}

	if err := r.loadJoins(ctx, &run); err != nil {
		return nil, err
	}

	return &run, nil
}

// List returns all runs, newest first, joins populated.
func (r *PostgresTrainingRunRepository) List(ctx context.Context) ([]models.TrainingRun, error) {
	query := `SELECT id, model_id, source, created_at FROM training_runs ORDER BY created_at DESC`

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list training runs: %w", err)
	}
	defer rows.Close()

	var runs []models.TrainingRun
	for rows.Next() {
		var run models.TrainingRun
		if err := rows.Scan(&run.ID, &run.ModelID, &run.Source, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan training run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if err := r.loadJoins(ctx, &runs[i]); err != nil {
			return nil, err
		}
	}

	return runs, nil
}

func (r *PostgresTrainingRunRepository) loadJoins(ctx context.Context, run *models.TrainingRun) error {
	executor := GetExecutor(ctx, r.pool)

	rows, err := executor.Query(ctx,
		`SELECT training_document_id FROM training_run_training_docs WHERE training_run_id = $1`, run.ID)
	if err != nil {
		return fmt.Errorf("list run training documents: %w", err)
	}
	run.TrainingDocumentIDs, err = collectIDs(rows)
	if err != nil {
		return err
	}

	rows, err = executor.Query(ctx,
		`SELECT document_id FROM training_run_case_docs WHERE training_run_id = $1`, run.ID)
	if err != nil {
		return fmt.Errorf("list run case documents: %w", err)
	}
	run.CaseDocumentIDs, err = collectIDs(rows)
	return err
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResetProcessedByModel flips processed=false on every training
// document linked to the run of the given model.
func (r *PostgresTrainingRunRepository) ResetProcessedByModel(ctx context.Context, modelID string) error {
	query := `
		UPDATE training_documents
		SET processed = FALSE
		WHERE id IN (
			SELECT l.training_document_id
			FROM training_run_training_docs l
			JOIN training_runs tr ON tr.id = l.training_run_id
			WHERE tr.model_id = $1
		)
	`

	executor := GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, modelID); err != nil {
		return fmt.Errorf("reset processed flags for model %s: %w", modelID, err)
	}

	return nil
}
