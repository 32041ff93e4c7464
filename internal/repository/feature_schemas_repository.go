package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

// FeatureSchemasRepository handles data access for the feature schema
// registry. Schemas are append-only; a new feature set gets a new version.
type FeatureSchemasRepository struct {
	db DB
}

// NewFeatureSchemasRepository creates a new feature schemas repository.
func NewFeatureSchemasRepository(db DB) *FeatureSchemasRepository {
	return &FeatureSchemasRepository{db: db}
}

// GetLatest returns the highest-version schema for a kind.
func (r *FeatureSchemasRepository) GetLatest(ctx context.Context, kind models.ModelKind) (*models.FeatureSchema, error) {
	query := `
		SELECT id, kind, version, feature_names, created_at
		FROM feature_schemas
		WHERE kind = $1
		ORDER BY version DESC
		LIMIT 1
	`

	var schema models.FeatureSchema
	err := r.db.QueryRow(ctx, query, kind).Scan(
		&schema.ID, &schema.Kind, &schema.Version, &schema.FeatureNames, &schema.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("feature_schema", "no feature schema for kind")
		}

		return nil, fmt.Errorf("failed to get latest feature schema: %w", err)
	}

	return &schema, nil
}

// GetByVersion returns one specific schema version for a kind. Inference
// pairs stored weights with the exact schema version they were trained
// against.
func (r *FeatureSchemasRepository) GetByVersion(ctx context.Context, kind models.ModelKind, version int) (*models.FeatureSchema, error) {
	query := `
		SELECT id, kind, version, feature_names, created_at
		FROM feature_schemas
		WHERE kind = $1 AND version = $2
	`

	var schema models.FeatureSchema
	err := r.db.QueryRow(ctx, query, kind, version).Scan(
		&schema.ID, &schema.Kind, &schema.Version, &schema.FeatureNames, &schema.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("feature_schema", "feature schema version not found")
		}

		return nil, fmt.Errorf("failed to get feature schema: %w", err)
	}

	return &schema, nil
}

// Seed inserts schema version 1 for a kind when the kind has no schemas yet.
// Idempotent across restarts and concurrent instances.
func (r *FeatureSchemasRepository) Seed(ctx context.Context, kind models.ModelKind, featureNames []string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO feature_schemas (kind, version, feature_names)
		SELECT $1, 1, $2
		WHERE NOT EXISTS (SELECT 1 FROM feature_schemas WHERE kind = $1)`,
		kind, featureNames,
	)
	if err != nil {
		return fmt.Errorf("failed to seed feature schema for %s: %w", kind, err)
	}

	return nil
}
