package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

// ModelVersionsRepository handles data access for trained model versions.
type ModelVersionsRepository struct {
	db DB
}

// NewModelVersionsRepository creates a new model versions repository.
func NewModelVersionsRepository(db DB) *ModelVersionsRepository {
	return &ModelVersionsRepository{db: db}
}

const modelVersionColumns = `id, kind, weights, metrics, feature_count, schema_version, active, created_by, created_at`

func scanModelVersion(row pgx.Row) (*models.ModelVersion, error) {
	var version models.ModelVersion
	var weightsRaw, metricsRaw []byte

	err := row.Scan(
		&version.ID, &version.Kind, &weightsRaw, &metricsRaw,
		&version.FeatureCount, &version.SchemaVersion, &version.Active,
		&version.CreatedBy, &version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(weightsRaw, &version.Weights); err != nil {
		return nil, fmt.Errorf("failed to decode weights for version %s: %w", version.ID, err)
	}

	if err := json.Unmarshal(metricsRaw, &version.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics for version %s: %w", version.ID, err)
	}

	return &version, nil
}

// Create stores a freshly trained model version. New versions are always
// inactive; promotion happens through Activate.
func (r *ModelVersionsRepository) Create(ctx context.Context, version *models.ModelVersion) (*models.ModelVersion, error) {
	weightsJSON, err := json.Marshal(version.Weights)
	if err != nil {
		return nil, fmt.Errorf("failed to encode weights: %w", err)
	}

	metricsJSON, err := json.Marshal(version.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metrics: %w", err)
	}

	query := `
		INSERT INTO model_versions (kind, weights, metrics, feature_count, schema_version, active, created_by)
		VALUES ($1, $2, $3, $4, $5, false, $6)
		RETURNING ` + modelVersionColumns

	created, err := scanModelVersion(r.db.QueryRow(ctx, query,
		version.Kind, weightsJSON, metricsJSON,
		version.FeatureCount, version.SchemaVersion, version.CreatedBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create model version: %w", err)
	}

	return created, nil
}

// GetByID retrieves a single model version.
func (r *ModelVersionsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ModelVersion, error) {
	query := `SELECT ` + modelVersionColumns + ` FROM model_versions WHERE id = $1`

	version, err := scanModelVersion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("model_version", "model version not found")
		}

		return nil, fmt.Errorf("failed to get model version: %w", err)
	}

	return version, nil
}

// GetActive returns the active version for a kind, or NotFoundError when the
// kind has never been activated.
func (r *ModelVersionsRepository) GetActive(ctx context.Context, kind models.ModelKind) (*models.ModelVersion, error) {
	query := `SELECT ` + modelVersionColumns + ` FROM model_versions WHERE kind = $1 AND active`

	version, err := scanModelVersion(r.db.QueryRow(ctx, query, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("model_version", "no active model version for kind")
		}

		return nil, fmt.Errorf("failed to get active model version: %w", err)
	}

	return version, nil
}

// ListByKind returns versions for a kind, newest first.
func (r *ModelVersionsRepository) ListByKind(ctx context.Context, kind models.ModelKind, limit int) ([]models.ModelVersion, error) {
	query := `
		SELECT ` + modelVersionColumns + `
		FROM model_versions
		WHERE kind = $1
		ORDER BY created_at DESC, id
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list model versions: %w", err)
	}
	defer rows.Close()

	var versions []models.ModelVersion

	for rows.Next() {
		version, err := scanModelVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model version: %w", err)
		}

		versions = append(versions, *version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating model versions: %w", err)
	}

	return versions, nil
}

// Activate promotes one version and demotes the previously active version of
// the same kind in a single transaction, so readers never observe zero or two
// active versions for a kind. Returns NotFoundError when id does not name a
// version of that kind.
func (r *ModelVersionsRepository) Activate(ctx context.Context, kind models.ModelKind, id uuid.UUID) (*models.ModelVersion, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`UPDATE model_versions SET active = false WHERE kind = $1 AND active AND id != $2`,
		kind, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate current version: %w", err)
	}

	query := `
		UPDATE model_versions SET active = true
		WHERE id = $1 AND kind = $2
		RETURNING ` + modelVersionColumns

	version, err := scanModelVersion(tx.QueryRow(ctx, query, id, kind))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("model_version", "model version not found for kind")
		}

		return nil, fmt.Errorf("failed to activate model version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}

	return version, nil
}
