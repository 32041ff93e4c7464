package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/ml"
	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/observability"
)

// Retriever is the retrieval dependency of the ask pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error)
}

// WineMatcher is the catalog-lookup dependency of the cellar route.
type WineMatcher interface {
	MatchWine(ctx context.Context, query models.MatchQuery) (*models.MatchResult, error)
}

// ActiveModelProvider resolves active model versions for inference.
type ActiveModelProvider interface {
	Active(ctx context.Context, kind models.ModelKind) (*ActiveModel, error)
}

// RankedPassage is one retrieved passage with its final rank score. When a
// reranker model is active, RerankScore is set and ordering follows it;
// otherwise ordering is raw retrieval similarity.
type RankedPassage struct {
	models.RetrievalResult
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// AskResponse is the outcome of the ask pipeline: the chosen route, the
// evidence for that choice, and the route's payload (passages or a catalog
// match). Fallbacks lists which stages ran on heuristics instead of an
// active model ("intent", "route", "reranker") or degraded ("retrieval").
type AskResponse struct {
	Query       string              `json:"query"`
	Route       models.RouteKind    `json:"route"`
	WineLookup  bool                `json:"wine_lookup"`
	IntentScore *float64            `json:"intent_score,omitempty"`
	RouteScores map[string]float64  `json:"route_scores,omitempty"`
	Passages    []RankedPassage     `json:"passages"`
	Match       *models.MatchResult `json:"match,omitempty"`
	Fallbacks   []string            `json:"fallbacks,omitempty"`
}

// AskServiceParams configures AskService. Metrics may be nil.
type AskServiceParams struct {
	Retriever       Retriever
	Matcher         WineMatcher
	Models          ActiveModelProvider
	IntentThreshold float64
	Metrics         observability.AskMetrics
	Logger          *slog.Logger
}

// AskService runs the question pipeline: intent scoring, route selection,
// retrieval, and reranking.
type AskService struct {
	retriever       Retriever
	matcher         WineMatcher
	modelProvider   ActiveModelProvider
	intentThreshold float64
	metrics         observability.AskMetrics
	logger          *slog.Logger
}

// NewAskService creates an AskService.
func NewAskService(p AskServiceParams) *AskService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AskService{
		retriever:       p.Retriever,
		matcher:         p.Matcher,
		modelProvider:   p.Models,
		intentThreshold: p.IntentThreshold,
		metrics:         p.Metrics,
		logger:          logger,
	}
}

// Ask answers a wine question by picking a route and assembling its payload.
// Retrieval failure degrades to the direct route rather than failing the
// request; schema or encoding errors propagate, they indicate a versioning
// bug rather than a transient fault.
func (s *AskService) Ask(ctx context.Context, query string) (*AskResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	resp := &AskResponse{Query: query, Passages: []RankedPassage{}}

	if err := s.detectIntent(ctx, query, resp); err != nil {
		return nil, err
	}

	if err := s.selectRoute(ctx, query, resp); err != nil {
		return nil, err
	}

	if err := s.executeRoute(ctx, query, resp); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordAsk(ctx, string(resp.Route))
	}

	return resp, nil
}

func (s *AskService) detectIntent(ctx context.Context, query string, resp *AskResponse) error {
	model, err := s.modelProvider.Active(ctx, models.ModelKindIntent)
	if err != nil {
		return fmt.Errorf("load intent model: %w", err)
	}

	if model == nil {
		resp.WineLookup = ml.WineLookupHeuristic(query)
		resp.Fallbacks = append(resp.Fallbacks, "intent")

		return nil
	}

	score, err := ml.ScoreFeatures(ml.IntentFeatures(query), model.Weights, model.Schema)
	if err != nil {
		return fmt.Errorf("score intent: %w", err)
	}

	resp.IntentScore = &score
	resp.WineLookup = score >= s.intentThreshold

	return nil
}

func (s *AskService) selectRoute(ctx context.Context, query string, resp *AskResponse) error {
	model, err := s.modelProvider.Active(ctx, models.ModelKindRoute)
	if err != nil {
		return fmt.Errorf("load route model: %w", err)
	}

	if model == nil {
		// Keyword fallback: confirmed wine lookups go to the cellar,
		// everything else to retrieval.
		if resp.WineLookup {
			resp.Route = models.RouteCellar
		} else {
			resp.Route = models.RouteRAG
		}
		resp.Fallbacks = append(resp.Fallbacks, "route")

		return nil
	}

	scores := make(map[string]float64, len(models.RoutePriority))
	best := models.RoutePriority[0]
	bestScore := -1.0

	// RoutePriority order means earlier routes win exact ties.
	for _, route := range models.RoutePriority {
		score, err := ml.ScoreFeatures(ml.RouteFeatures(query, route), model.Weights, model.Schema)
		if err != nil {
			return fmt.Errorf("score route %s: %w", route, err)
		}

		scores[string(route)] = score
		if score > bestScore {
			best = route
			bestScore = score
		}
	}

	resp.Route = best
	resp.RouteScores = scores

	return nil
}

func (s *AskService) executeRoute(ctx context.Context, query string, resp *AskResponse) error {
	switch resp.Route {
	case models.RouteCellar:
		// A free-text question cannot be split into producer and wine name,
		// so the whole query is offered as both identity fields; the matcher
		// refuses to classify on fewer than two.
		match, err := s.matcher.MatchWine(ctx, models.MatchQuery{Producer: query, WineName: query})
		if err != nil && !errors.Is(err, apperrors.ErrMatcherUnavailable) {
			return err
		}

		// An unavailable catalog still returns the degraded NO_MATCH result.
		resp.Match = match

		return nil

	case models.RouteRAG:
		results, err := s.retriever.Retrieve(ctx, query, 0)
		if err != nil {
			if errors.Is(err, apperrors.ErrRetrievalUnavailable) {
				s.logger.Warn("ask: retrieval unavailable, degrading to direct route", "error", err)
				resp.Route = models.RouteDirect
				resp.Fallbacks = append(resp.Fallbacks, "retrieval")

				return nil
			}

			return err
		}

		passages, err := s.rerank(ctx, query, results, resp)
		if err != nil {
			return err
		}

		resp.Passages = passages

		return nil

	default:
		return nil
	}
}

// rerank reorders retrieved passages by the active reranker model. Without an
// active model the raw retrieval order stands.
func (s *AskService) rerank(ctx context.Context, query string, results []models.RetrievalResult, resp *AskResponse) ([]RankedPassage, error) {
	passages := make([]RankedPassage, len(results))
	for i, res := range results {
		passages[i] = RankedPassage{RetrievalResult: res}
	}

	model, err := s.modelProvider.Active(ctx, models.ModelKindReranker)
	if err != nil {
		return nil, fmt.Errorf("load reranker model: %w", err)
	}

	if model == nil {
		if len(passages) > 0 {
			resp.Fallbacks = append(resp.Fallbacks, "reranker")
		}

		return passages, nil
	}

	for i := range passages {
		score, err := ml.ScoreFeatures(
			ml.RerankFeatures(query, passages[i].RetrievalResult, i),
			model.Weights, model.Schema,
		)
		if err != nil {
			return nil, fmt.Errorf("score passage %s: %w", passages[i].ChunkID, err)
		}

		passages[i].RerankScore = &score
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return *passages[i].RerankScore > *passages[j].RerankScore
	})

	return passages, nil
}
