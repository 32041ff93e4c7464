package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

type mockWebhooksService struct {
	createFunc func(ctx context.Context, req *models.CreateWebhookRequest) (*models.Webhook, error)
	getFunc    func(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	deleteFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *mockWebhooksService) CreateWebhook(ctx context.Context, req *models.CreateWebhookRequest) (*models.Webhook, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}

	return &models.Webhook{ID: uuid.New(), URL: req.URL, Enabled: true}, nil
}

func (m *mockWebhooksService) GetWebhook(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}

	return &models.Webhook{ID: id, Enabled: true}, nil
}

func (m *mockWebhooksService) ListWebhooks(context.Context) ([]models.Webhook, error) {
	return []models.Webhook{}, nil
}

func (m *mockWebhooksService) UpdateWebhook(_ context.Context, id uuid.UUID, _ *models.UpdateWebhookRequest) (*models.Webhook, error) {
	return &models.Webhook{ID: id, Enabled: true}, nil
}

func (m *mockWebhooksService) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}

	return nil
}

func TestWebhooksHandler_Create(t *testing.T) {
	t.Run("invalid URL returns 400", func(t *testing.T) {
		handler := NewWebhooksHandler(&mockWebhooksService{})
		body := []byte(`{"url":"not a url"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/webhooks", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("webhook cap reached returns 400", func(t *testing.T) {
		mock := &mockWebhooksService{
			createFunc: func(context.Context, *models.CreateWebhookRequest) (*models.Webhook, error) {
				return nil, apperrors.NewValidationError("webhooks", "maximum number of webhooks reached")
			},
		}
		handler := NewWebhooksHandler(mock)
		body := []byte(`{"url":"https://example.com/hooks/training"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/webhooks", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("success returns 201", func(t *testing.T) {
		handler := NewWebhooksHandler(&mockWebhooksService{})
		body := []byte(`{"url":"https://example.com/hooks/training"}`)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/webhooks", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Create(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestWebhooksHandler_Get(t *testing.T) {
	t.Run("unknown webhook returns 404", func(t *testing.T) {
		mock := &mockWebhooksService{
			getFunc: func(context.Context, uuid.UUID) (*models.Webhook, error) {
				return nil, apperrors.NewNotFoundError("webhook", "webhook not found")
			},
		}
		handler := NewWebhooksHandler(mock)
		id := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "http://test/v1/webhooks/"+id.String(), nil)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()

		handler.Get(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestWebhooksHandler_Delete(t *testing.T) {
	t.Run("success returns 204", func(t *testing.T) {
		handler := NewWebhooksHandler(&mockWebhooksService{})
		id := uuid.New()
		req := httptest.NewRequest(http.MethodDelete, "http://test/v1/webhooks/"+id.String(), nil)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()

		handler.Delete(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
