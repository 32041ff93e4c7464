// Package handlers implements the HTTP handlers for the API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/apperrors"
)

// respondServiceError maps service-layer errors to problem responses. Errors
// without a mapping become an opaque 500 so internals never leak to clients.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		response.RespondNotFound(w, err.Error())
	case errors.Is(err, apperrors.ErrValidation):
		response.RespondBadRequest(w, err.Error())
	case errors.Is(err, apperrors.ErrInsufficientData):
		response.RespondUnprocessableEntity(w, err.Error())
	case errors.Is(err, apperrors.ErrFeatureEncoding):
		response.RespondUnprocessableEntity(w, err.Error())
	case errors.Is(err, apperrors.ErrSchemaMismatch):
		response.RespondUnprocessableEntity(w, err.Error())
	case errors.Is(err, apperrors.ErrMatcherUnavailable),
		errors.Is(err, apperrors.ErrRetrievalUnavailable):
		response.RespondServiceUnavailable(w, "A dependency is temporarily unavailable")
	default:
		slog.Error("Unhandled service error", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
	}
}

// parsePathID extracts and parses the {id} path segment. On failure it writes
// a 400 and returns false.
func parsePathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		response.RespondBadRequest(w, "ID is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondBadRequest(w, "Invalid UUID format")
		return uuid.Nil, false
	}

	return id, true
}
