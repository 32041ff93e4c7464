package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/observability"
	"github.com/vinoteca/sommelier/internal/service"
)

// WebhookDispatchWorker delivers one training event to one webhook endpoint.
type WebhookDispatchWorker struct {
	river.WorkerDefaults[service.WebhookDispatchArgs]

	repo    webhookDispatchRepo
	sender  service.WebhookSender
	metrics observability.WebhookMetrics
}

// webhookDispatchRepo is the minimal repo interface needed by the worker.
type webhookDispatchRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error)
}

// NewWebhookDispatchWorker creates a worker that uses the given repo and sender.
// metrics may be nil when metrics are disabled.
func NewWebhookDispatchWorker(
	repo webhookDispatchRepo, sender service.WebhookSender, metrics observability.WebhookMetrics,
) *WebhookDispatchWorker {
	return &WebhookDispatchWorker{repo: repo, sender: sender, metrics: metrics}
}

// WebhookDeliveryTimeout is the max duration for a single webhook delivery (align with HTTP client timeout).
const WebhookDeliveryTimeout = 25 * time.Second

// Timeout limits how long a single delivery can run (align with HTTP client timeout).
func (w *WebhookDispatchWorker) Timeout(*river.Job[service.WebhookDispatchArgs]) time.Duration {
	return WebhookDeliveryTimeout
}

// Work loads the webhook, builds the payload, and sends once. Retries across
// attempts come from River; after the final failed attempt the webhook is
// disabled so a dead endpoint stops consuming the queue.
func (w *WebhookDispatchWorker) Work(ctx context.Context, job *river.Job[service.WebhookDispatchArgs]) error {
	args := job.Args

	webhook, err := w.repo.GetByID(ctx, args.WebhookID)
	if err != nil {
		w.recordDelivery(ctx, "failed_final")
		slog.Error("webhook dispatch: get webhook failed",
			"event_id", args.EventID,
			"webhook_id", args.WebhookID,
			"error", err,
		)

		return nil // no retry if webhook not found
	}

	if !webhook.Enabled {
		slog.Debug("webhook dispatch: webhook disabled, skipping",
			"event_id", args.EventID,
			"webhook_id", args.WebhookID,
		)

		return nil
	}

	payload := &service.WebhookPayload{
		ID:        args.EventID,
		Type:      args.EventType,
		Timestamp: args.Timestamp,
		Data: service.TrainingCompletedData{
			TrainedBy: args.TrainedBy,
			Outcomes:  args.Outcomes,
		},
	}

	err = w.sender.Send(ctx, webhook, payload)
	if err == nil {
		w.recordDelivery(ctx, "success")

		return nil
	}

	if job.Attempt >= job.MaxAttempts {
		w.recordDelivery(ctx, "failed_final")
		w.disableAfterMaxAttempts(ctx, webhook, args.EventID, err)

		return nil
	}

	w.recordDelivery(ctx, "retry")

	return fmt.Errorf("send webhook: %w", err)
}

func (w *WebhookDispatchWorker) disableAfterMaxAttempts(ctx context.Context, webhook *models.Webhook, eventID uuid.UUID, sendErr error) {
	enabled := false
	reason := sendErr.Error()
	now := time.Now()

	_, err := w.repo.Update(ctx, webhook.ID, &models.UpdateWebhookRequest{
		Enabled:        &enabled,
		DisabledReason: &reason,
		DisabledAt:     &now,
	})
	if err != nil {
		slog.Error("webhook dispatch: failed to disable webhook after max attempts",
			"webhook_id", webhook.ID,
			"event_id", eventID,
			"error", err,
		)

		return
	}

	if w.metrics != nil {
		w.metrics.RecordDisabled(ctx, "max_attempts")
	}

	slog.Error("webhook disabled after max delivery attempts",
		"webhook_id", webhook.ID,
		"event_id", eventID,
		"error", sendErr,
	)
}

func (w *WebhookDispatchWorker) recordDelivery(ctx context.Context, status string) {
	if w.metrics != nil {
		w.metrics.RecordDelivery(ctx, status)
	}
}
