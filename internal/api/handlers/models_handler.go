package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/models"
)

// ModelsService defines the interface for model training and versioning.
type ModelsService interface {
	Train(ctx context.Context, kind models.ModelKind, trainedBy string) (*models.ModelVersion, error)
	TrainAll(ctx context.Context, trainedBy string) []models.TrainingOutcome
	Activate(ctx context.Context, kind models.ModelKind, id uuid.UUID) (*models.ModelVersion, error)
	GetActive(ctx context.Context, kind models.ModelKind) (*models.ModelVersion, error)
	ListVersions(ctx context.Context, kind models.ModelKind, limit int) ([]models.ModelVersion, error)
}

// ModelsHandler handles HTTP requests for model training and versioning.
type ModelsHandler struct {
	service ModelsService
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(svc ModelsService) *ModelsHandler {
	return &ModelsHandler{service: svc}
}

// trainedBy labels API-initiated training runs in version metadata.
const trainedByAPI = "api"

// TrainAll handles POST /v1/models/train. Partial success is a valid terminal
// state, so the response always carries the per-kind outcomes with a 200.
func (h *ModelsHandler) TrainAll(w http.ResponseWriter, r *http.Request) {
	outcomes := h.service.TrainAll(r.Context(), trainedByAPI)
	response.RespondJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

// Train handles POST /v1/models/{kind}/train.
func (h *ModelsHandler) Train(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}

	version, err := h.service.Train(r.Context(), kind, trainedByAPI)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, version)
}

// Activate handles POST /v1/models/{kind}/versions/{id}/activate.
func (h *ModelsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}

	id, ok := parsePathID(w, r)
	if !ok {
		return
	}

	version, err := h.service.Activate(r.Context(), kind, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, version)
}

// GetActive handles GET /v1/models/{kind}/active.
func (h *ModelsHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}

	version, err := h.service.GetActive(r.Context(), kind)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, version)
}

// ListVersions handles GET /v1/models/{kind}/versions.
func (h *ModelsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}

	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	versions, err := h.service.ListVersions(r.Context(), kind, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// parseKind extracts and validates the {kind} path segment. On failure it
// writes a 400 and returns false.
func parseKind(w http.ResponseWriter, r *http.Request) (models.ModelKind, bool) {
	kind := r.PathValue("kind")
	if !models.IsValidModelKind(kind) {
		response.RespondBadRequest(w, "kind must be one of: reranker, route, intent")
		return "", false
	}

	return models.ModelKind(kind), true
}
