// Command train runs one full training pass over all model kinds and prints
// the per-kind outcomes. New versions are persisted inactive; promote them via
// the API.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vinoteca/sommelier/internal/config"
	"github.com/vinoteca/sommelier/internal/repository"
	"github.com/vinoteca/sommelier/internal/service"
	"github.com/vinoteca/sommelier/pkg/database"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	trainingService := service.NewTrainingService(service.TrainingServiceParams{
		ExamplesRepo: repository.NewTrainingExamplesRepository(db),
		VersionsRepo: repository.NewModelVersionsRepository(db),
		SchemasRepo:  repository.NewFeatureSchemasRepository(db),
		Config: service.TrainingConfig{
			MinExamples:     cfg.TrainMinExamples,
			HoldoutFraction: cfg.TrainHoldoutFraction,
			LearningRate:    cfg.TrainLearningRate,
			L2Lambda:        cfg.TrainL2Lambda,
			MaxIterations:   cfg.TrainMaxIterations,
		},
	})

	outcomes := trainingService.TrainAll(ctx, "cli")

	trained := 0

	for _, outcome := range outcomes {
		if outcome.Error != "" {
			slog.Error("training failed", "kind", outcome.Kind, "error", outcome.Error)

			continue
		}

		trained++
		slog.Info("trained new version",
			"kind", outcome.Kind,
			"version_id", outcome.VersionID,
			"precision", outcome.Metrics.Precision,
			"recall", outcome.Metrics.Recall,
			"train_count", outcome.Metrics.TrainCount,
			"holdout_count", outcome.Metrics.HoldoutCount,
		)
	}

	if trained == 0 {
		os.Exit(1)
	}
}
