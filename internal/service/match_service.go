package service

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/agext/levenshtein"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/observability"
	"github.com/vinoteca/sommelier/internal/textnorm"
)

// WinesRepositoryForMatch provides the catalog reads the matcher needs.
type WinesRepositoryForMatch interface {
	FindCandidates(ctx context.Context, producerNorm, nameNorm string, limit int) ([]models.WineRecord, error)
}

// MatchWeights are the relative contributions of each attribute to a
// candidate's total score. Producer and name always participate; vintage and
// alcohol weights are renormalized away when either side lacks the value, so
// every total stays in [0,1].
type MatchWeights struct {
	Producer float64
	WineName float64
	Vintage  float64
	Alcohol  float64
}

// MatchThresholds classify a top score into EXACT / LIKELY / NO_MATCH bands.
type MatchThresholds struct {
	Exact  float64
	Likely float64
}

// MatchServiceParams configures MatchService. Metrics may be nil.
type MatchServiceParams struct {
	WinesRepo     WinesRepositoryForMatch
	Weights       MatchWeights
	Thresholds    MatchThresholds
	MaxCandidates int
	BlockingLimit int
	Metrics       observability.MatchMetrics
	Logger        *slog.Logger
}

// MatchService implements fuzzy wine-identity matching over the catalog.
type MatchService struct {
	winesRepo     WinesRepositoryForMatch
	weights       MatchWeights
	thresholds    MatchThresholds
	maxCandidates int
	blockingLimit int
	metrics       observability.MatchMetrics
	logger        *slog.Logger
}

// NewMatchService creates a MatchService.
func NewMatchService(p MatchServiceParams) *MatchService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MatchService{
		winesRepo:     p.WinesRepo,
		weights:       p.Weights,
		thresholds:    p.Thresholds,
		maxCandidates: p.MaxCandidates,
		blockingLimit: p.BlockingLimit,
		metrics:       p.Metrics,
		logger:        logger,
	}
}

// MatchWine scores catalog candidates against a partial, possibly noisy query
// and classifies the best into EXACT_MATCH, LIKELY_MATCH, or NO_MATCH.
// A catalog failure degrades to NO_MATCH with NeedsManualEntry set and a
// wrapped MatcherUnavailableError; it never fabricates a match.
func (s *MatchService) MatchWine(ctx context.Context, query models.MatchQuery) (*models.MatchResult, error) {
	producerNorm := textnorm.Normalize(query.Producer)
	nameNorm := textnorm.Normalize(query.WineName)

	// Both identity fields are required: with producer or name missing after
	// normalization there is too little signal to fuzzy-match safely, and a
	// lone field would otherwise carry the whole score.
	if producerNorm == "" || nameNorm == "" {
		result := &models.MatchResult{Status: models.MatchStatusNone, Candidates: []models.WineCandidate{}}
		s.record(ctx, string(result.Status))

		return result, nil
	}

	records, err := s.winesRepo.FindCandidates(ctx, producerNorm, nameNorm, s.blockingLimit)
	if err != nil {
		s.logger.Error("wine match: catalog lookup failed", "error", err)
		s.record(ctx, "error")

		return &models.MatchResult{
			Status:           models.MatchStatusNone,
			Candidates:       []models.WineCandidate{},
			NeedsManualEntry: true,
		}, apperrors.NewMatcherUnavailableError(err)
	}

	candidates := s.scoreCandidates(query, producerNorm, nameNorm, records)

	result := s.classify(candidates)
	s.record(ctx, string(result.Status))

	return result, nil
}

type scoredWine struct {
	record models.WineRecord
	score  float64
}

func (s *MatchService) scoreCandidates(query models.MatchQuery, producerNorm, nameNorm string, records []models.WineRecord) []scoredWine {
	scored := make([]scoredWine, 0, len(records))

	for _, rec := range records {
		total := s.weights.Producer*levenshtein.Similarity(producerNorm, rec.ProducerNorm, nil) +
			s.weights.WineName*levenshtein.Similarity(nameNorm, rec.WineNameNorm, nil)
		weightSum := s.weights.Producer + s.weights.WineName

		if query.Vintage != nil && rec.Vintage != nil {
			total += s.weights.Vintage * vintageScore(*query.Vintage, *rec.Vintage)
			weightSum += s.weights.Vintage
		}

		if query.AlcoholPercent != nil && rec.AlcoholPercent != nil {
			total += s.weights.Alcohol * alcoholScore(*query.AlcoholPercent, *rec.AlcoholPercent)
			weightSum += s.weights.Alcohol
		}

		if weightSum == 0 {
			continue
		}

		scored = append(scored, scoredWine{record: rec, score: total / weightSum})
	}

	// Non-increasing score; ties broken by wine ID so ordering is stable.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}

		return scored[i].record.ID.String() < scored[j].record.ID.String()
	})

	return scored
}

func (s *MatchService) classify(scored []scoredWine) *models.MatchResult {
	if len(scored) == 0 || scored[0].score < s.thresholds.Likely {
		return &models.MatchResult{Status: models.MatchStatusNone, Candidates: []models.WineCandidate{}}
	}

	top := scored[0]

	if top.score >= s.thresholds.Exact {
		wineID := top.record.ID

		return &models.MatchResult{
			Status:     models.MatchStatusExact,
			Score:      top.score,
			WineID:     &wineID,
			Candidates: []models.WineCandidate{toCandidate(top)},
		}
	}

	limit := s.maxCandidates
	if limit > len(scored) {
		limit = len(scored)
	}

	candidates := make([]models.WineCandidate, 0, limit)
	for _, sw := range scored[:limit] {
		if sw.score < s.thresholds.Likely {
			break
		}

		candidates = append(candidates, toCandidate(sw))
	}

	return &models.MatchResult{
		Status:     models.MatchStatusLikely,
		Score:      top.score,
		Candidates: candidates,
	}
}

func toCandidate(sw scoredWine) models.WineCandidate {
	return models.WineCandidate{
		WineID:     sw.record.ID,
		Producer:   sw.record.Producer,
		WineName:   sw.record.WineName,
		Vintage:    sw.record.Vintage,
		TotalScore: sw.score,
	}
}

// vintageScore gives full credit for an exact year, half for being one year
// off (common OCR slip), nothing beyond that.
func vintageScore(a, b int) float64 {
	switch diff := a - b; {
	case diff == 0:
		return 1
	case diff == 1 || diff == -1:
		return 0.5
	default:
		return 0
	}
}

// alcoholScore gives full credit within 0.1%, half within 0.3% (label
// rounding), nothing beyond that.
func alcoholScore(a, b float64) float64 {
	switch diff := math.Abs(a - b); {
	case diff <= 0.1:
		return 1
	case diff <= 0.3:
		return 0.5
	default:
		return 0
	}
}

func (s *MatchService) record(ctx context.Context, status string) {
	if s.metrics != nil {
		s.metrics.RecordMatch(ctx, status)
	}
}
