package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/textnorm"
)

// WinesRepository handles data access for the wine catalog.
type WinesRepository struct {
	db DB
}

// NewWinesRepository creates a new wines repository.
func NewWinesRepository(db DB) *WinesRepository {
	return &WinesRepository{db: db}
}

// Create inserts a new catalog entry, deriving the normalized columns used
// for trigram blocking.
func (r *WinesRepository) Create(ctx context.Context, req *models.CreateWineRequest) (*models.WineRecord, error) {
	query := `
		INSERT INTO wines (
			producer, wine_name, vintage, alcohol_percent, region, country,
			producer_norm, wine_name_norm
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, producer, wine_name, vintage, alcohol_percent, region, country,
			producer_norm, wine_name_norm, created_at
	`

	var wine models.WineRecord
	err := r.db.QueryRow(ctx, query,
		req.Producer, req.WineName, req.Vintage, req.AlcoholPercent,
		req.Region, req.Country,
		textnorm.Normalize(req.Producer), textnorm.Normalize(req.WineName),
	).Scan(
		&wine.ID, &wine.Producer, &wine.WineName, &wine.Vintage,
		&wine.AlcoholPercent, &wine.Region, &wine.Country,
		&wine.ProducerNorm, &wine.WineNameNorm, &wine.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wine: %w", err)
	}

	return &wine, nil
}

// GetByID retrieves a single catalog entry by ID.
func (r *WinesRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WineRecord, error) {
	query := `
		SELECT id, producer, wine_name, vintage, alcohol_percent, region, country,
			producer_norm, wine_name_norm, created_at
		FROM wines
		WHERE id = $1
	`

	var wine models.WineRecord
	err := r.db.QueryRow(ctx, query, id).Scan(
		&wine.ID, &wine.Producer, &wine.WineName, &wine.Vintage,
		&wine.AlcoholPercent, &wine.Region, &wine.Country,
		&wine.ProducerNorm, &wine.WineNameNorm, &wine.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("wine", "wine not found")
		}

		return nil, fmt.Errorf("failed to get wine: %w", err)
	}

	return &wine, nil
}

// FindCandidates returns the blocking set for a fuzzy match: catalog rows
// whose normalized producer or name is trigram-similar to the normalized
// query strings, most similar first. Empty query strings contribute nothing
// to the block; when both are empty the result is empty. limit caps the set
// so exhaustive scoring stays bounded.
func (r *WinesRepository) FindCandidates(ctx context.Context, producerNorm, nameNorm string, limit int) ([]models.WineRecord, error) {
	if producerNorm == "" && nameNorm == "" {
		return nil, nil
	}

	// greatest(similarity(...)) ranks the block; the % operator keeps the
	// GIN trigram indexes usable.
	query := `
		SELECT id, producer, wine_name, vintage, alcohol_percent, region, country,
			producer_norm, wine_name_norm, created_at
		FROM wines
		WHERE ($1 != '' AND producer_norm % $1)
		   OR ($2 != '' AND wine_name_norm % $2)
		ORDER BY greatest(similarity(producer_norm, $1), similarity(wine_name_norm, $2)) DESC, id
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, producerNorm, nameNorm, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query wine candidates: %w", err)
	}
	defer rows.Close()

	var wines []models.WineRecord

	for rows.Next() {
		var wine models.WineRecord
		if err := rows.Scan(
			&wine.ID, &wine.Producer, &wine.WineName, &wine.Vintage,
			&wine.AlcoholPercent, &wine.Region, &wine.Country,
			&wine.ProducerNorm, &wine.WineNameNorm, &wine.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wine candidate: %w", err)
		}

		wines = append(wines, wine)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wine candidates: %w", err)
	}

	return wines, nil
}
