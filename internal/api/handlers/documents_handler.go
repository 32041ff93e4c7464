package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/api/validation"
	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/service"
)

// DocumentsService defines the interface for document ingestion business logic.
type DocumentsService interface {
	Ingest(ctx context.Context, req *models.CreateDocumentRequest) (*service.IngestResponse, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	BackfillEmbeddings(ctx context.Context) (int, error)
}

// DocumentsHandler handles HTTP requests for reference documents.
type DocumentsHandler struct {
	service DocumentsService
}

// NewDocumentsHandler creates a new documents handler.
func NewDocumentsHandler(svc DocumentsService) *DocumentsHandler {
	return &DocumentsHandler{service: svc}
}

// Create handles POST /v1/documents.
func (h *DocumentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDocumentRequest
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

	resp, err := h.service.Ingest(r.Context(), &req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusCreated, resp)
}

// Get handles GET /v1/documents/{id}.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r)
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, doc)
}

// List handles GET /v1/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	docs, err := h.service.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Delete handles DELETE /v1/documents/{id}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(r.Context(), id); err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Backfill handles POST /v1/documents/backfill-embeddings. It re-enqueues
// embedding jobs for chunks that never got a vector.
func (h *DocumentsHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	scheduled, err := h.service.BackfillEmbeddings(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, map[string]int{"jobs_scheduled": scheduled})
}

// queryInt parses an optional non-negative integer query parameter. Zero means
// "use the service default". On bad input it writes a 400 and returns false.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		response.RespondBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}

	return value, true
}
