package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/pkg/vision"
)

// LabelVisionClient extracts wine attributes from a label photo.
type LabelVisionClient interface {
	ExtractLabel(ctx context.Context, imageBase64 string) (*vision.LabelExtraction, error)
}

// LabelScanResponse pairs the OCR extraction with the catalog match built
// from it.
type LabelScanResponse struct {
	Extraction *vision.LabelExtraction `json:"extraction"`
	Match      *models.MatchResult     `json:"match"`
}

// LabelService turns label photos into catalog matches via the vision
// microservice and the fuzzy matcher.
type LabelService struct {
	vision  LabelVisionClient
	matcher WineMatcher
	logger  *slog.Logger
}

// NewLabelService creates a LabelService.
func NewLabelService(visionClient LabelVisionClient, matcher WineMatcher, logger *slog.Logger) *LabelService {
	if logger == nil {
		logger = slog.Default()
	}

	return &LabelService{
		vision:  visionClient,
		matcher: matcher,
		logger:  logger,
	}
}

// ScanLabel OCRs the label image and fuzzy-matches the extracted attributes
// against the catalog. A degraded matcher result (catalog unreachable) is
// still returned with its manual-entry flag; only the vision call is fatal.
func (s *LabelService) ScanLabel(ctx context.Context, imageBase64 string) (*LabelScanResponse, error) {
	extraction, err := s.vision.ExtractLabel(ctx, imageBase64)
	if err != nil {
		s.logger.Error("label scan: vision extraction failed", "error", err)

		return nil, fmt.Errorf("extract label: %w", err)
	}

	match, err := s.matcher.MatchWine(ctx, models.MatchQuery{
		Producer:       extraction.Producer,
		WineName:       extraction.WineName,
		Vintage:        extraction.Vintage,
		AlcoholPercent: extraction.AlcoholPercent,
	})
	if err != nil {
		s.logger.Warn("label scan: match degraded", "error", err)
	}

	return &LabelScanResponse{Extraction: extraction, Match: match}, nil
}
