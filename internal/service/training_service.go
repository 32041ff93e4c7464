package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/ml"
	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/observability"
)

// TrainingExamplesRepositoryForTraining provides the example reads training needs.
type TrainingExamplesRepositoryForTraining interface {
	ListByKind(ctx context.Context, kind models.ModelKind) ([]models.TrainingExample, error)
}

// ModelVersionsRepositoryForTraining provides the version writes and reads.
type ModelVersionsRepositoryForTraining interface {
	Create(ctx context.Context, version *models.ModelVersion) (*models.ModelVersion, error)
	Activate(ctx context.Context, kind models.ModelKind, id uuid.UUID) (*models.ModelVersion, error)
	GetActive(ctx context.Context, kind models.ModelKind) (*models.ModelVersion, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ModelVersion, error)
	ListByKind(ctx context.Context, kind models.ModelKind, limit int) ([]models.ModelVersion, error)
}

// FeatureSchemasRepositoryForTraining resolves the latest schema per kind.
type FeatureSchemasRepositoryForTraining interface {
	GetLatest(ctx context.Context, kind models.ModelKind) (*models.FeatureSchema, error)
}

// ModelCacheInvalidator drops cached active models after activation.
type ModelCacheInvalidator interface {
	Invalidate(kind models.ModelKind)
}

// TrainingNotifier is told when a TrainAll run finishes, so registered
// webhooks can be notified. May be nil.
type TrainingNotifier interface {
	TrainingCompleted(ctx context.Context, trainedBy string, outcomes []models.TrainingOutcome)
}

// TrainingConfig holds the gradient-descent and split knobs.
type TrainingConfig struct {
	MinExamples     int
	HoldoutFraction float64
	LearningRate    float64
	L2Lambda        float64
	MaxIterations   int
}

// TrainingServiceParams configures TrainingService.
// Metrics, Invalidator, and Notifier may be nil.
type TrainingServiceParams struct {
	ExamplesRepo TrainingExamplesRepositoryForTraining
	VersionsRepo ModelVersionsRepositoryForTraining
	SchemasRepo  FeatureSchemasRepositoryForTraining
	Config       TrainingConfig
	Invalidator  ModelCacheInvalidator
	Notifier     TrainingNotifier
	Metrics      observability.TrainerMetrics
	Logger       *slog.Logger
}

// TrainingService fits, persists, and promotes model versions.
type TrainingService struct {
	examplesRepo TrainingExamplesRepositoryForTraining
	versionsRepo ModelVersionsRepositoryForTraining
	schemasRepo  FeatureSchemasRepositoryForTraining
	cfg          TrainingConfig
	invalidator  ModelCacheInvalidator
	notifier     TrainingNotifier
	metrics      observability.TrainerMetrics
	logger       *slog.Logger
}

// NewTrainingService creates a TrainingService.
func NewTrainingService(p TrainingServiceParams) *TrainingService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TrainingService{
		examplesRepo: p.ExamplesRepo,
		versionsRepo: p.VersionsRepo,
		schemasRepo:  p.SchemasRepo,
		cfg:          p.Config,
		invalidator:  p.Invalidator,
		notifier:     p.Notifier,
		metrics:      p.Metrics,
		logger:       logger,
	}
}

// Train fits a new version for one kind and persists it inactive. Below the
// minimum example count it fails with InsufficientDataError and leaves the
// active version untouched. Activation is a separate explicit step.
func (s *TrainingService) Train(ctx context.Context, kind models.ModelKind, trainedBy string) (*models.ModelVersion, error) {
	start := time.Now()

	version, err := s.train(ctx, kind, trainedBy)
	s.recordRun(ctx, kind, err, time.Since(start))

	return version, err
}

func (s *TrainingService) train(ctx context.Context, kind models.ModelKind, trainedBy string) (*models.ModelVersion, error) {
	schema, err := s.schemasRepo.GetLatest(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", kind, err)
	}

	examples, err := s.examplesRepo.ListByKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load examples for %s: %w", kind, err)
	}

	if len(examples) < s.cfg.MinExamples {
		return nil, apperrors.NewInsufficientDataError(string(kind), len(examples), s.cfg.MinExamples)
	}

	vectors := make([][]float64, len(examples))
	labels := make([]bool, len(examples))

	for i, ex := range examples {
		vec, err := ml.Vectorize(ex.Features, schema.FeatureNames)
		if err != nil {
			return nil, fmt.Errorf("vectorize example %s: %w", ex.ID, err)
		}

		vectors[i] = vec
		labels[i] = ex.Label
	}

	// Examples arrive in time order; the newest slice is held out so the
	// evaluation approximates performance on future feedback.
	holdoutCount := int(float64(len(examples)) * s.cfg.HoldoutFraction)
	trainCount := len(examples) - holdoutCount

	fit, err := ml.Fit(vectors[:trainCount], labels[:trainCount], schema.FeatureNames, ml.FitOptions{
		LearningRate:  s.cfg.LearningRate,
		L2Lambda:      s.cfg.L2Lambda,
		MaxIterations: s.cfg.MaxIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", kind, err)
	}

	loss, precision, recall, err := ml.Evaluate(vectors[trainCount:], labels[trainCount:], fit.Weights, schema.FeatureNames)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", kind, err)
	}

	version, err := s.versionsRepo.Create(ctx, &models.ModelVersion{
		Kind:    kind,
		Weights: fit.Weights,
		Metrics: models.TrainingMetrics{
			Loss:         loss,
			Precision:    precision,
			Recall:       recall,
			TrainCount:   trainCount,
			HoldoutCount: holdoutCount,
			Iterations:   fit.Iterations,
		},
		FeatureCount:  len(schema.FeatureNames),
		SchemaVersion: schema.Version,
		CreatedBy:     trainedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("save version for %s: %w", kind, err)
	}

	s.logger.Info("trained model version",
		"kind", kind,
		"version_id", version.ID,
		"train_count", trainCount,
		"holdout_count", holdoutCount,
		"holdout_loss", loss,
		"iterations", fit.Iterations,
	)

	return version, nil
}

// TrainAll trains every model kind concurrently. Each kind's outcome is
// captured independently; partial success is a valid terminal state. The
// returned slice follows models.ModelKinds order.
func (s *TrainingService) TrainAll(ctx context.Context, trainedBy string) []models.TrainingOutcome {
	outcomes := make([]models.TrainingOutcome, len(models.ModelKinds))

	var wg sync.WaitGroup

	for i, kind := range models.ModelKinds {
		wg.Add(1)

		go func(i int, kind models.ModelKind) {
			defer wg.Done()

			outcome := models.TrainingOutcome{Kind: kind}

			version, err := s.Train(ctx, kind, trainedBy)
			if err != nil {
				s.logger.Warn("training failed for kind", "kind", kind, "error", err)
				outcome.Error = err.Error()
			} else {
				outcome.VersionID = &version.ID
				outcome.Metrics = &version.Metrics
			}

			outcomes[i] = outcome
		}(i, kind)
	}

	wg.Wait()

	if s.notifier != nil {
		s.notifier.TrainingCompleted(ctx, trainedBy, outcomes)
	}

	return outcomes
}

// Activate promotes a version for its kind, demoting the prior active
// version atomically, then drops the inference cache entry.
func (s *TrainingService) Activate(ctx context.Context, kind models.ModelKind, id uuid.UUID) (*models.ModelVersion, error) {
	version, err := s.versionsRepo.Activate(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(kind)
	}

	s.logger.Info("activated model version", "kind", kind, "version_id", id)

	return version, nil
}

// GetActive returns the active version for a kind.
func (s *TrainingService) GetActive(ctx context.Context, kind models.ModelKind) (*models.ModelVersion, error) {
	return s.versionsRepo.GetActive(ctx, kind)
}

// ListVersions returns recent versions for a kind, newest first.
func (s *TrainingService) ListVersions(ctx context.Context, kind models.ModelKind, limit int) ([]models.ModelVersion, error) {
	if limit <= 0 {
		limit = 20
	}

	return s.versionsRepo.ListByKind(ctx, kind, limit)
}

func (s *TrainingService) recordRun(ctx context.Context, kind models.ModelKind, err error, d time.Duration) {
	if s.metrics == nil {
		return
	}

	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInsufficientData):
		status = "skipped"
	default:
		status = "failed"
	}

	s.metrics.RecordRun(ctx, string(kind), status, d)
}
