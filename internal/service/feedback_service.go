package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vinoteca/sommelier/internal/ml"
	"github.com/vinoteca/sommelier/internal/models"
)

// TrainingExamplesRepositoryForFeedback provides the example writes feedback needs.
type TrainingExamplesRepositoryForFeedback interface {
	Create(ctx context.Context, req *models.CreateTrainingExampleRequest) (*models.TrainingExample, error)
	CountByKind(ctx context.Context, kind models.ModelKind) (int, error)
}

// FeedbackService records user feedback as append-only training examples.
type FeedbackService struct {
	examplesRepo TrainingExamplesRepositoryForFeedback
	schemasRepo  FeatureSchemasRepositoryForTraining
	logger       *slog.Logger
}

// NewFeedbackService creates a FeedbackService.
func NewFeedbackService(examplesRepo TrainingExamplesRepositoryForFeedback, schemasRepo FeatureSchemasRepositoryForTraining, logger *slog.Logger) *FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedbackService{
		examplesRepo: examplesRepo,
		schemasRepo:  schemasRepo,
		logger:       logger,
	}
}

// RecordExample appends one labeled example. The feature map is vectorized
// against the kind's current schema before insert, so malformed feature
// values fail here with a FeatureEncodingError instead of at training time.
func (s *FeedbackService) RecordExample(ctx context.Context, req *models.CreateTrainingExampleRequest) (*models.TrainingExample, error) {
	kind := models.ModelKind(req.Kind)

	schema, err := s.schemasRepo.GetLatest(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", kind, err)
	}

	if _, err := ml.Vectorize(req.Features, schema.FeatureNames); err != nil {
		return nil, err
	}

	example, err := s.examplesRepo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("record example: %w", err)
	}

	return example, nil
}

// ExampleCount returns the number of stored examples for a kind.
func (s *FeedbackService) ExampleCount(ctx context.Context, kind models.ModelKind) (int, error) {
	return s.examplesRepo.CountByKind(ctx, kind)
}
