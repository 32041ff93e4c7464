package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/vinoteca/sommelier/internal/models"
)

// WebhookProvider fans a training-completed event out to every enabled
// webhook as one dispatch job per endpoint. Implements TrainingNotifier.
type WebhookProvider struct {
	repo        WebhooksRepository
	inserter    JobInserter
	maxAttempts int
	logger      *slog.Logger
}

// NewWebhookProvider creates a WebhookProvider. maxAttempts caps delivery
// retries per endpoint; zero uses the River default.
func NewWebhookProvider(repo WebhooksRepository, inserter JobInserter, maxAttempts int, logger *slog.Logger) *WebhookProvider {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookProvider{
		repo:        repo,
		inserter:    inserter,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// TrainingCompleted enqueues one delivery job per enabled webhook. Failures
// are logged per endpoint; one endpoint's failure never blocks the others.
func (p *WebhookProvider) TrainingCompleted(ctx context.Context, trainedBy string, outcomes []models.TrainingOutcome) {
	webhooks, err := p.repo.ListEnabled(ctx)
	if err != nil {
		p.logger.Error("webhook fan-out: list enabled failed", "error", err)

		return
	}

	if len(webhooks) == 0 {
		return
	}

	eventID := uuid.New()
	timestamp := time.Now()

	for _, webhook := range webhooks {
		_, err := p.inserter.Insert(ctx, WebhookDispatchArgs{
			EventID:   eventID,
			EventType: EventTypeTrainingCompleted,
			Timestamp: timestamp,
			TrainedBy: trainedBy,
			Outcomes:  outcomes,
			WebhookID: webhook.ID,
		}, &river.InsertOpts{Queue: WebhooksQueueName, MaxAttempts: p.maxAttempts})
		if err != nil {
			p.logger.Error("webhook fan-out: enqueue failed",
				"webhook_id", webhook.ID,
				"event_id", eventID,
				"error", err,
			)
		}
	}
}
