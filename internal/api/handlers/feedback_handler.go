package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/api/validation"
	"github.com/vinoteca/sommelier/internal/models"
)

// FeedbackService records labeled feedback as training examples.
type FeedbackService interface {
	RecordExample(ctx context.Context, req *models.CreateTrainingExampleRequest) (*models.TrainingExample, error)
	ExampleCount(ctx context.Context, kind models.ModelKind) (int, error)
}

// FeedbackHandler handles HTTP requests for training feedback.
type FeedbackHandler struct {
	service FeedbackService
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(svc FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Create handles POST /v1/feedback.
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTrainingExampleRequest
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

	example, err := h.service.RecordExample(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, example)
}

// Count handles GET /v1/feedback/{kind}/count.
func (h *FeedbackHandler) Count(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if !models.IsValidModelKind(kind) {
		response.RespondBadRequest(w, "kind must be one of: reranker, route, intent")
		return
	}

	count, err := h.service.ExampleCount(r.Context(), models.ModelKind(kind))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]any{"kind": kind, "count": count})
}
