package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

// WebhooksRepository handles data access for webhooks
type WebhooksRepository struct {
	db DB
}

// NewWebhooksRepository creates a new webhooks repository
func NewWebhooksRepository(db DB) *WebhooksRepository {
	return &WebhooksRepository{db: db}
}

const webhookColumns = `id, url, signing_key, enabled, disabled_reason, disabled_at, created_at, updated_at`

func scanWebhook(row pgx.Row) (*models.Webhook, error) {
	var webhook models.Webhook
	err := row.Scan(
		&webhook.ID, &webhook.URL, &webhook.SigningKey, &webhook.Enabled,
		&webhook.DisabledReason, &webhook.DisabledAt,
		&webhook.CreatedAt, &webhook.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &webhook, nil
}

// Create inserts a new webhook
func (r *WebhooksRepository) Create(ctx context.Context, req *models.CreateWebhookRequest) (*models.Webhook, error) {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	query := `
		INSERT INTO webhooks (url, signing_key, enabled)
		VALUES ($1, $2, $3)
		RETURNING ` + webhookColumns

	webhook, err := scanWebhook(r.db.QueryRow(ctx, query, req.URL, req.SigningKey, enabled))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	return webhook, nil
}

// GetByID retrieves a single webhook by ID
func (r *WebhooksRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	webhook, err := scanWebhook(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("webhook", "webhook not found")
		}

		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}

	return webhook, nil
}

// List returns all webhooks, newest first
func (r *WebhooksRepository) List(ctx context.Context) ([]models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []models.Webhook

	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}

		webhooks = append(webhooks, *webhook)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhooks: %w", err)
	}

	return webhooks, nil
}

// ListEnabled returns all enabled webhooks
func (r *WebhooksRepository) ListEnabled(ctx context.Context) ([]models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE enabled ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []models.Webhook

	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}

		webhooks = append(webhooks, *webhook)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating enabled webhooks: %w", err)
	}

	return webhooks, nil
}

// Count returns the total number of webhooks, used to enforce the registration cap
func (r *WebhooksRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM webhooks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count webhooks: %w", err)
	}

	return count, nil
}

// Update applies a partial update. Re-enabling a webhook clears its disabled
// reason and timestamp.
func (r *WebhooksRepository) Update(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error) {
	var sets []string
	var args []interface{}
	argCount := 1

	if req.URL != nil {
		sets = append(sets, fmt.Sprintf("url = $%d", argCount))
		args = append(args, *req.URL)
		argCount++
	}

	if req.Enabled != nil {
		sets = append(sets, fmt.Sprintf("enabled = $%d", argCount))
		args = append(args, *req.Enabled)
		argCount++

		if *req.Enabled {
			sets = append(sets, "disabled_reason = NULL", "disabled_at = NULL")
		}
	}

	if req.DisabledReason != nil {
		sets = append(sets, fmt.Sprintf("disabled_reason = $%d", argCount))
		args = append(args, *req.DisabledReason)
		argCount++
	}

	if req.DisabledAt != nil {
		sets = append(sets, fmt.Sprintf("disabled_at = $%d", argCount))
		args = append(args, *req.DisabledAt)
		argCount++
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(
		`UPDATE webhooks SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), argCount, webhookColumns,
	)
	args = append(args, id)

	webhook, err := scanWebhook(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("webhook", "webhook not found")
		}

		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	return webhook, nil
}

// Delete removes a webhook
func (r *WebhooksRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("webhook", "webhook not found")
	}

	return nil
}
