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

// PostgresModelRepository implements the ModelRepository interface.
type PostgresModelRepository struct {
	pool         *pgxpool.Pool
	trainingRepo repositories.TrainingRunRepository
	txManager    repositories.TransactionManager
	logger       *slog.Logger
}

// NewModelRepository creates a new model repository. The training run
// repository and transaction manager are needed so model deletion can
// reset the processed flag of linked training documents in the same
// transaction.
func NewModelRepository(config *RepositoryConfig, trainingRepo repositories.TrainingRunRepository, txManager repositories.TransactionManager) repositories.ModelRepository {
	return &PostgresModelRepository{
		pool:         config.Pool,
		trainingRepo: trainingRepo,
		txManager:    txManager,
		logger:       config.Logger,
	}
}

const modelColumns = `id, name, path, is_active, created_at, precision_score, recall_score, f1_score`

func scanModel(row pgx.Row, m *models.Model) error {
	return row.Scan(
		&m.ID,
		&m.Name,
		&m.Path,
		&m.IsActive,
		&m.CreatedAt,
		&m.Precision,
		&m.Recall,
		&m.F1Score,
	)
}

// Create registers a new model version.
func (r *PostgresModelRepository) Create(ctx context.Context, m *models.Model) error {
	query := `
		INSERT INTO models (name, path, is_active, precision_score, recall_score, f1_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		m.Name,
		m.Path,
		m.IsActive,
		m.Precision,
		m.Recall,
		m.F1Score,
	).Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("model %q already exists: %w", m.Name, domain.ErrConflict)
		}
		return fmt.Errorf("create model: %w", err)
	}

	return nil
}

// GetByID retrieves a model by ID.
func (r *PostgresModelRepository) GetByID(ctx context.Context, id string) (*models.Model, error) {
	return r.getOne(ctx, `SELECT `+modelColumns+` FROM models WHERE id = $1`, id)
}

// GetByName retrieves a model by its unique name.
func (r *PostgresModelRepository) GetByName(ctx context.Context, name string) (*models.Model, error) {
	return r.getOne(ctx, `SELECT `+modelColumns+` FROM models WHERE name = $1`, name)
}

// GetActive returns the currently active model.
func (r *PostgresModelRepository) GetActive(ctx context.Context) (*models.Model, error) {
	return r.getOne(ctx, `SELECT `+modelColumns+` FROM models WHERE is_active LIMIT 1`)
}

func (r *PostgresModelRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Model, error) {
	var m models.Model
	executor := GetExecutor(ctx, r.pool)
	if err := scanModel(executor.QueryRow(ctx, query, args...), &m); err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("model: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get model: %w", err)
	}
	return &m, nil
}

// List returns all models, newest first.
func (r *PostgresModelRepository) List(ctx context.Context) ([]models.Model, error) {
	query := `SELECT ` + modelColumns + ` FROM models ORDER BY created_at DESC`

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var list []models.Model
	for rows.Next() {
		var m models.Model
		if err := scanModel(rows, &m); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		list = append(list, m)
	}

	return list, rows.Err()
}

// SetActive atomically deactivates every model and activates the one
// with the given ID. The single-active invariant is enforced here, in
// one transaction, not in a save hook.
func (r *PostgresModelRepository) SetActive(ctx context.Context, id string) error {
	return r.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		executor := GetExecutor(txCtx, r.pool)

		if _, err := executor.Exec(txCtx, `UPDATE models SET is_active = FALSE WHERE is_active`); err != nil {
			return fmt.Errorf("deactivate models: %w", err)
		}

		tag, err := executor.Exec(txCtx, `UPDATE models SET is_active = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("activate model: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("model %s: %w", id, domain.ErrNotFound)
		}

		return nil
	})
}

// Delete deletes a model. Its training run cascades away; the linked
// training documents are reset to unprocessed first so they become
// eligible for future runs.
func (r *PostgresModelRepository) Delete(ctx context.Context, id string) error {
	return r.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := r.trainingRepo.ResetProcessedByModel(txCtx, id); err != nil {
			return err
		}

		executor := GetExecutor(txCtx, r.pool)
		tag, err := executor.Exec(txCtx, `DELETE FROM models WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete model: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("model %s: %w", id, domain.ErrNotFound)
		}

		return nil
	})
}
