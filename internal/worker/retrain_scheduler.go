// Package worker provides in-process background loops for the API.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vinoteca/sommelier/internal/models"
)

// ModelTrainer runs a full training pass over all model kinds.
type ModelTrainer interface {
	TrainAll(ctx context.Context, trainedBy string) []models.TrainingOutcome
}

// RetrainScheduler periodically retrains all model kinds. New versions are
// persisted inactive; promotion stays an explicit administrative action.
type RetrainScheduler struct {
	trainer  ModelTrainer
	interval time.Duration
}

// NewRetrainScheduler creates a scheduler that retrains every interval.
func NewRetrainScheduler(trainer ModelTrainer, interval time.Duration) *RetrainScheduler {
	return &RetrainScheduler{trainer: trainer, interval: interval}
}

// Start begins the background loop. It runs until the context is cancelled.
func (w *RetrainScheduler) Start(ctx context.Context) {
	slog.Info("retrain scheduler started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retrain scheduler stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RetrainScheduler) runOnce(ctx context.Context) {
	outcomes := w.trainer.TrainAll(ctx, "scheduler")

	trained, failed := 0, 0
	for _, outcome := range outcomes {
		if outcome.Error != "" {
			failed++
		} else {
			trained++
		}
	}

	slog.Info("scheduled retrain finished", "trained", trained, "failed", failed)
}
