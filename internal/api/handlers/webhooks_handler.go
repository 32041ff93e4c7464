package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/api/validation"
	"github.com/vinoteca/sommelier/internal/models"
)

// WebhooksService defines the interface for webhooks business logic.
type WebhooksService interface {
	CreateWebhook(ctx context.Context, req *models.CreateWebhookRequest) (*models.Webhook, error)
	GetWebhook(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	ListWebhooks(ctx context.Context) ([]models.Webhook, error)
	UpdateWebhook(ctx context.Context, id uuid.UUID, req *models.UpdateWebhookRequest) (*models.Webhook, error)
	DeleteWebhook(ctx context.Context, id uuid.UUID) error
}

// WebhooksHandler handles HTTP requests for webhooks.
type WebhooksHandler struct {
	service WebhooksService
}

// NewWebhooksHandler creates a new webhooks handler.
func NewWebhooksHandler(service WebhooksService) *WebhooksHandler {
	return &WebhooksHandler{service: service}
}

// Create handles POST /v1/webhooks.
func (h *WebhooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWebhookRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	webhook, err := h.service.CreateWebhook(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, webhook)
}

// Get handles GET /v1/webhooks/{id}.
func (h *WebhooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r)
	if !ok {
		return
	}

	webhook, err := h.service.GetWebhook(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, webhook)
}

// List handles GET /v1/webhooks.
func (h *WebhooksHandler) List(w http.ResponseWriter, r *http.Request) {
	webhooks, err := h.service.ListWebhooks(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]any{"webhooks": webhooks})
}

// Update handles PATCH /v1/webhooks/{id}.
func (h *WebhooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r)
	if !ok {
		return
	}

	var req models.UpdateWebhookRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body for update", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	webhook, err := h.service.UpdateWebhook(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, webhook)
}

// Delete handles DELETE /v1/webhooks/{id}.
func (h *WebhooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteWebhook(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
