package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/api/validation"
	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

// WineMatchService resolves noisy wine attributes against the catalog.
type WineMatchService interface {
	MatchWine(ctx context.Context, query models.MatchQuery) (*models.MatchResult, error)
}

// WinesStore persists catalog entries (e.g. the manual-entry path after NO_MATCH).
type WinesStore interface {
	Create(ctx context.Context, req *models.CreateWineRequest) (*models.WineRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.WineRecord, error)
}

// WinesHandler handles HTTP requests for the wine catalog and fuzzy matching.
type WinesHandler struct {
	matcher WineMatchService
	store   WinesStore
}

// NewWinesHandler creates a new wines handler.
func NewWinesHandler(matcher WineMatchService, store WinesStore) *WinesHandler {
	return &WinesHandler{matcher: matcher, store: store}
}

// Match handles POST /v1/wines/match.
func (h *WinesHandler) Match(w http.ResponseWriter, r *http.Request) {
	var query models.MatchQuery
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&query); err != nil {
		slog.Warn("Invalid request body", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&query); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	result, err := h.matcher.MatchWine(r.Context(), query)
	if err != nil {
		// Catalog outage still produces a usable degraded result; the
		// needs_manual_entry flag tells the client not to trust NO_MATCH.
		if errors.Is(err, apperrors.ErrMatcherUnavailable) && result != nil {
			response.RespondJSON(w, http.StatusOK, result)
			return
		}

		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Create handles POST /v1/wines.
func (h *WinesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWineRequest
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

	wine, err := h.store.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, wine)
}

// Get handles GET /v1/wines/{id}.
func (h *WinesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r)
	if !ok {
		return
	}

	wine, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, wine)
}
