package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vinoteca/sommelier/internal/models"
)

// TrainingExamplesRepository handles data access for the append-only
// training_examples table.
type TrainingExamplesRepository struct {
	db DB
}

// NewTrainingExamplesRepository creates a new training examples repository.
func NewTrainingExamplesRepository(db DB) *TrainingExamplesRepository {
	return &TrainingExamplesRepository{db: db}
}

// Create appends one labeled example. Examples are never updated or deleted.
func (r *TrainingExamplesRepository) Create(ctx context.Context, req *models.CreateTrainingExampleRequest) (*models.TrainingExample, error) {
	featuresJSON, err := json.Marshal(req.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}

	metadata := req.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	query := `
		INSERT INTO training_examples (kind, features, label, metadata, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, kind, features, label, metadata, created_by, created_at
	`

	var example models.TrainingExample
	var featuresRaw []byte
	err = r.db.QueryRow(ctx, query,
		req.Kind, featuresJSON, req.Label, metadata, req.CreatedBy,
	).Scan(
		&example.ID, &example.Kind, &featuresRaw, &example.Label,
		&example.Metadata, &example.CreatedBy, &example.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create training example: %w", err)
	}

	if err := json.Unmarshal(featuresRaw, &example.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}

	return &example, nil
}

// ListByKind returns all examples for a model kind in insertion-time order.
// The trainer depends on this ordering for its time-based holdout split.
func (r *TrainingExamplesRepository) ListByKind(ctx context.Context, kind models.ModelKind) ([]models.TrainingExample, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, kind, features, label, metadata, created_by, created_at
		FROM training_examples
		WHERE kind = $1
		ORDER BY created_at, id`,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list training examples: %w", err)
	}
	defer rows.Close()

	var examples []models.TrainingExample

	for rows.Next() {
		var example models.TrainingExample
		var featuresRaw []byte
		if err := rows.Scan(
			&example.ID, &example.Kind, &featuresRaw, &example.Label,
			&example.Metadata, &example.CreatedBy, &example.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan training example: %w", err)
		}

		if err := json.Unmarshal(featuresRaw, &example.Features); err != nil {
			return nil, fmt.Errorf("failed to decode features for example %s: %w", example.ID, err)
		}

		examples = append(examples, example)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating training examples: %w", err)
	}

	return examples, nil
}

// CountByKind returns how many examples exist for a model kind.
func (r *TrainingExamplesRepository) CountByKind(ctx context.Context, kind models.ModelKind) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM training_examples WHERE kind = $1`, kind,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count training examples: %w", err)
	}

	return count, nil
}
