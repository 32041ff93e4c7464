package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/api/validation"
	"github.com/vinoteca/sommelier/internal/service"
)

// AskRequest is the body for POST /v1/ask.
type AskRequest struct {
	Query string `json:"query" validate:"required,min=1,max=2048,no_null_bytes"`
}

// AskOrchestrator runs the full question pipeline: intent, routing, retrieval, rerank.
type AskOrchestrator interface {
	Ask(ctx context.Context, query string) (*service.AskResponse, error)
}

// AskHandler handles HTTP requests for the question pipeline.
type AskHandler struct {
	service AskOrchestrator
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(svc AskOrchestrator) *AskHandler {
	return &AskHandler{service: svc}
}

// Ask handles POST /v1/ask.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
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

	resp, err := h.service.Ask(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			response.RespondBadRequest(w, "query must not be blank")
			return
		}

		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, resp)
}
