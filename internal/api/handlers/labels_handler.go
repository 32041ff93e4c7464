package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/api/validation"
	"github.com/vinoteca/sommelier/internal/service"
)

// ScanLabelRequest is the body for POST /v1/labels/scan.
type ScanLabelRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
}

// LabelScanner extracts wine attributes from a label photo and matches them
// against the catalog.
type LabelScanner interface {
	ScanLabel(ctx context.Context, imageBase64 string) (*service.LabelScanResponse, error)
}

// LabelsHandler handles HTTP requests for label scans.
type LabelsHandler struct {
	service LabelScanner
}

// NewLabelsHandler creates a new labels handler.
func NewLabelsHandler(svc LabelScanner) *LabelsHandler {
	return &LabelsHandler{service: svc}
}

// Scan handles POST /v1/labels/scan.
func (h *LabelsHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req ScanLabelRequest
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

	resp, err := h.service.ScanLabel(r.Context(), req.ImageBase64)
	if err != nil {
		slog.Error("Label scan failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondError(w, http.StatusBadGateway, "Bad Gateway", "label extraction failed")
		return
	}

	response.RespondJSON(w, http.StatusOK, resp)
}
