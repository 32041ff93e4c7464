package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/observability"
	"github.com/vinoteca/sommelier/pkg/cache"
)

const activeModelCacheName = "active_model"

// ModelVersionsRepositoryForInference provides the reads inference needs.
type ModelVersionsRepositoryForInference interface {
	GetActive(ctx context.Context, kind models.ModelKind) (*models.ModelVersion, error)
}

// FeatureSchemasRepositoryForInference resolves the schema a version was
// trained against.
type FeatureSchemasRepositoryForInference interface {
	GetByVersion(ctx context.Context, kind models.ModelKind, version int) (*models.FeatureSchema, error)
}

// ActiveModel pairs an active version's weights with the exact feature schema
// they were trained against.
type ActiveModel struct {
	VersionID uuid.UUID
	Kind      models.ModelKind
	Weights   models.ModelWeights
	Schema    []string
}

// ModelProviderParams configures ModelProvider. Cache and CacheMetrics may be nil.
type ModelProviderParams struct {
	VersionsRepo ModelVersionsRepositoryForInference
	SchemasRepo  FeatureSchemasRepositoryForInference
	Cache        *cache.LoaderCache[models.ModelKind, *ActiveModel]
	CacheMetrics observability.CacheMetrics
	Logger       *slog.Logger
}

// ModelProvider resolves the active model version per kind for inference,
// with an in-process cache invalidated on activation.
type ModelProvider struct {
	versionsRepo ModelVersionsRepositoryForInference
	schemasRepo  FeatureSchemasRepositoryForInference
	cache        *cache.LoaderCache[models.ModelKind, *ActiveModel]
	cacheMetrics observability.CacheMetrics
	logger       *slog.Logger
}

// NewModelProvider creates a ModelProvider.
func NewModelProvider(p ModelProviderParams) *ModelProvider {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ModelProvider{
		versionsRepo: p.VersionsRepo,
		schemasRepo:  p.SchemasRepo,
		cache:        p.Cache,
		cacheMetrics: p.CacheMetrics,
		logger:       logger,
	}
}

// Active returns the active model for a kind, or (nil, nil) when the kind has
// no active version so callers can branch to their documented fallback.
func (p *ModelProvider) Active(ctx context.Context, kind models.ModelKind) (*ActiveModel, error) {
	if p.cache == nil {
		return p.load(ctx, kind)
	}

	model, hit, err := p.cache.GetWithStats(ctx, kind, p.load)
	if err != nil {
		return nil, err
	}

	if p.cacheMetrics != nil {
		if hit {
			p.cacheMetrics.RecordHit(ctx, activeModelCacheName)
		} else {
			p.cacheMetrics.RecordMiss(ctx, activeModelCacheName)
		}
	}

	return model, nil
}

// Invalidate drops the cached entry for kind. Called after activation so the
// next inference sees the promoted version.
func (p *ModelProvider) Invalidate(kind models.ModelKind) {
	if p.cache != nil {
		p.cache.Invalidate(kind)
	}
}

func (p *ModelProvider) load(ctx context.Context, kind models.ModelKind) (*ActiveModel, error) {
	version, err := p.versionsRepo.GetActive(ctx, kind)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// No active version yet; cached as nil so the fallback path
			// does not hammer the database.
			return nil, nil
		}

		return nil, fmt.Errorf("get active version for %s: %w", kind, err)
	}

	schema, err := p.schemasRepo.GetByVersion(ctx, kind, version.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("get schema v%d for %s: %w", version.SchemaVersion, kind, err)
	}

	return &ActiveModel{
		VersionID: version.ID,
		Kind:      kind,
		Weights:   version.Weights,
		Schema:    schema.FeatureNames,
	}, nil
}
