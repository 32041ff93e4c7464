package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/service"
)

type mockDispatchRepo struct {
	getByID func(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	update  func(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error)
}

func (m *mockDispatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	return m.getByID(ctx, id)
}

func (m *mockDispatchRepo) Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
	return m.update(ctx, id, req)
}

type mockSender struct {
	send func(ctx context.Context, webhook *models.Webhook, payload *service.WebhookPayload) error
}

func (m *mockSender) Send(ctx context.Context, webhook *models.Webhook, payload *service.WebhookPayload) error {
	return m.send(ctx, webhook, payload)
}

func dispatchJob(args service.WebhookDispatchArgs, attempt, maxAttempts int) *river.Job[service.WebhookDispatchArgs] {
	return &river.Job[service.WebhookDispatchArgs]{
		JobRow: &rivertype.JobRow{Attempt: attempt, MaxAttempts: maxAttempts},
		Args:   args,
	}
}

func TestWebhookDispatchWorker_Work(t *testing.T) {
	webhookID := uuid.New()
	args := service.WebhookDispatchArgs{
		EventID:   uuid.New(),
		EventType: service.EventTypeTrainingCompleted,
		Timestamp: time.Now(),
		TrainedBy: "api",
		WebhookID: webhookID,
	}

	t.Run("delivers to an enabled webhook", func(t *testing.T) {
		var sentTo *models.Webhook

		repo := &mockDispatchRepo{
			getByID: func(_ context.Context, id uuid.UUID) (*models.Webhook, error) {
				return &models.Webhook{ID: id, URL: "https://example.com/hook", Enabled: true}, nil
			},
		}
		sender := &mockSender{
			send: func(_ context.Context, webhook *models.Webhook, payload *service.WebhookPayload) error {
				sentTo = webhook
				assert.Equal(t, args.EventID, payload.ID)
				assert.Equal(t, service.EventTypeTrainingCompleted, payload.Type)

				return nil
			},
		}

		worker := NewWebhookDispatchWorker(repo, sender, nil)

		err := worker.Work(context.Background(), dispatchJob(args, 1, 3))

		require.NoError(t, err)
		require.NotNil(t, sentTo)
		assert.Equal(t, webhookID, sentTo.ID)
	})

	t.Run("missing webhook is not retried", func(t *testing.T) {
		repo := &mockDispatchRepo{
			getByID: func(context.Context, uuid.UUID) (*models.Webhook, error) {
				return nil, errors.New("webhook not found")
			},
		}
		sender := &mockSender{
			send: func(context.Context, *models.Webhook, *service.WebhookPayload) error {
				t.Fatal("send should not be called")

				return nil
			},
		}

		worker := NewWebhookDispatchWorker(repo, sender, nil)

		err := worker.Work(context.Background(), dispatchJob(args, 1, 3))

		assert.NoError(t, err)
	})

	t.Run("disabled webhook is skipped", func(t *testing.T) {
		repo := &mockDispatchRepo{
			getByID: func(_ context.Context, id uuid.UUID) (*models.Webhook, error) {
				return &models.Webhook{ID: id, Enabled: false}, nil
			},
		}
		sender := &mockSender{
			send: func(context.Context, *models.Webhook, *service.WebhookPayload) error {
				t.Fatal("send should not be called")

				return nil
			},
		}

		worker := NewWebhookDispatchWorker(repo, sender, nil)

		err := worker.Work(context.Background(), dispatchJob(args, 1, 3))

		assert.NoError(t, err)
	})

	t.Run("send failure before the last attempt returns an error for retry", func(t *testing.T) {
		repo := &mockDispatchRepo{
			getByID: func(_ context.Context, id uuid.UUID) (*models.Webhook, error) {
				return &models.Webhook{ID: id, Enabled: true}, nil
			},
			update: func(context.Context, uuid.UUID, *models.UpdateWebhookRequest) (*models.Webhook, error) {
				t.Fatal("webhook should not be disabled before the last attempt")

				return nil, nil
			},
		}
		sender := &mockSender{
			send: func(context.Context, *models.Webhook, *service.WebhookPayload) error {
				return errors.New("connection refused")
			},
		}

		worker := NewWebhookDispatchWorker(repo, sender, nil)

		err := worker.Work(context.Background(), dispatchJob(args, 1, 3))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("send failure on the last attempt disables the webhook", func(t *testing.T) {
		var disabled *models.UpdateWebhookRequest

		repo := &mockDispatchRepo{
			getByID: func(_ context.Context, id uuid.UUID) (*models.Webhook, error) {
				return &models.Webhook{ID: id, Enabled: true}, nil
			},
			update: func(_ context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
				disabled = req

				return &models.Webhook{ID: id, Enabled: false}, nil
			},
		}
		sender := &mockSender{
			send: func(context.Context, *models.Webhook, *service.WebhookPayload) error {
				return errors.New("connection refused")
			},
		}

		worker := NewWebhookDispatchWorker(repo, sender, nil)

		err := worker.Work(context.Background(), dispatchJob(args, 3, 3))

		require.NoError(t, err)
		require.NotNil(t, disabled)
		require.NotNil(t, disabled.Enabled)
		assert.False(t, *disabled.Enabled)
		require.NotNil(t, disabled.DisabledReason)
		assert.Contains(t, *disabled.DisabledReason, "connection refused")
		assert.NotNil(t, disabled.DisabledAt)
	})
}
