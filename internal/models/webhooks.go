package models

import (
	"time"

	"github.com/google/uuid"
)

// Webhook is a registered endpoint notified when a training run completes.
type Webhook struct {
	ID             uuid.UUID  `json:"id"`
	URL            string     `json:"url"`
	SigningKey     string     `json:"signing_key"`
	Enabled        bool       `json:"enabled"`
	DisabledReason *string    `json:"disabled_reason,omitempty"`
	DisabledAt     *time.Time `json:"disabled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateWebhookRequest represents the request to create a webhook.
// SigningKey is auto-generated when omitted.
type CreateWebhookRequest struct {
	URL        string `json:"url" validate:"required,url,min=1,max=2048,no_null_bytes"`
	SigningKey string `json:"signing_key,omitempty" validate:"omitempty,min=16,max=255"`
	Enabled    *bool  `json:"enabled,omitempty"`
}

// UpdateWebhookRequest represents the request to update a webhook.
type UpdateWebhookRequest struct {
	URL            *string    `json:"url,omitempty" validate:"omitempty,url,min=1,max=2048,no_null_bytes"`
	Enabled        *bool      `json:"enabled,omitempty"`
	DisabledReason *string    `json:"-"`
	DisabledAt     *time.Time `json:"-"`
}
