package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

// WebhooksRepository defines the interface for webhooks data access
type WebhooksRepository interface {
	Create(ctx context.Context, req *models.CreateWebhookRequest) (*models.Webhook, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	List(ctx context.Context) ([]models.Webhook, error)
	ListEnabled(ctx context.Context) ([]models.Webhook, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// WebhooksService handles business logic for webhooks
type WebhooksService struct {
	repo     WebhooksRepository
	maxCount int64
}

// NewWebhooksService creates a new webhooks service. maxCount caps how many
// webhooks may be registered.
func NewWebhooksService(repo WebhooksRepository, maxCount int64) *WebhooksService {
	return &WebhooksService{repo: repo, maxCount: maxCount}
}

// CreateWebhook creates a new webhook, generating a signing key when the
// request omits one.
func (s *WebhooksService) CreateWebhook(ctx context.Context, req *models.CreateWebhookRequest) (*models.Webhook, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	if count >= s.maxCount {
		return nil, apperrors.NewValidationError("url", fmt.Sprintf("webhook limit reached (%d)", s.maxCount))
	}

	if req.SigningKey == "" {
		key, err := generateSigningKey()
		if err != nil {
			return nil, err
		}
		req.SigningKey = key
	}

	return s.repo.Create(ctx, req)
}

// generateSigningKey generates a cryptographically secure signing key
// in the format expected by Standard Webhooks: "whsec_" + base64(32 random bytes)
func generateSigningKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate signing key: %w", err)
	}

	return "whsec_" + base64.StdEncoding.EncodeToString(key), nil
}

// GetWebhook retrieves a single webhook by ID
func (s *WebhooksService) GetWebhook(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	return s.repo.GetByID(ctx, id)
}

// ListWebhooks retrieves all webhooks
func (s *WebhooksService) ListWebhooks(ctx context.Context) ([]models.Webhook, error) {
	return s.repo.List(ctx)
}

// UpdateWebhook updates an existing webhook
func (s *WebhooksService) UpdateWebhook(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
	return s.repo.Update(ctx, id, req)
}

// DeleteWebhook deletes a webhook
func (s *WebhooksService) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
