package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/ml"
	"github.com/vinoteca/sommelier/internal/models"
)

type mockRetriever struct {
	retrieveFunc func(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	if m.retrieveFunc != nil {
		return m.retrieveFunc(ctx, query, topK)
	}

	return []models.RetrievalResult{}, nil
}

type mockMatcher struct {
	matchFunc func(ctx context.Context, query models.MatchQuery) (*models.MatchResult, error)
}

func (m *mockMatcher) MatchWine(ctx context.Context, query models.MatchQuery) (*models.MatchResult, error) {
	if m.matchFunc != nil {
		return m.matchFunc(ctx, query)
	}

	return &models.MatchResult{Status: models.MatchStatusNone}, nil
}

type mockModelProvider struct {
	active map[models.ModelKind]*ActiveModel
}

func (m *mockModelProvider) Active(_ context.Context, kind models.ModelKind) (*ActiveModel, error) {
	return m.active[kind], nil
}

// uniformWeights builds a weight set that scores every input identically, so
// route selection falls through to the priority order.
func uniformWeights(schema []string) models.ModelWeights {
	w := models.ModelWeights{models.BiasKey: 0}
	for _, name := range schema {
		w[name] = 0
	}

	return w
}

func newTestAskService(provider ActiveModelProvider, retriever Retriever, matcher WineMatcher) *AskService {
	return NewAskService(AskServiceParams{
		Retriever:       retriever,
		Matcher:         matcher,
		Models:          provider,
		IntentThreshold: 0.6,
	})
}

func TestAskService_Ask(t *testing.T) {
	t.Run("blank query is rejected", func(t *testing.T) {
		svc := newTestAskService(&mockModelProvider{}, &mockRetriever{}, &mockMatcher{})

		_, err := svc.Ask(context.Background(), "  ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("no active models falls back to heuristics and flags them", func(t *testing.T) {
		svc := newTestAskService(&mockModelProvider{}, &mockRetriever{}, &mockMatcher{})

		resp, err := svc.Ask(context.Background(), "what pairs with salmon")
		require.NoError(t, err)

		assert.Equal(t, models.RouteRAG, resp.Route)
		assert.Contains(t, resp.Fallbacks, "intent")
		assert.Contains(t, resp.Fallbacks, "route")
		assert.Nil(t, resp.IntentScore)
	})

	t.Run("heuristic wine lookup routes to the cellar", func(t *testing.T) {
		matched := false
		svc := newTestAskService(&mockModelProvider{}, &mockRetriever{}, &mockMatcher{
			matchFunc: func(_ context.Context, q models.MatchQuery) (*models.MatchResult, error) {
				matched = true
				assert.NotEmpty(t, q.Producer)
				assert.NotEmpty(t, q.WineName)

				return &models.MatchResult{Status: models.MatchStatusLikely}, nil
			},
		})

		resp, err := svc.Ask(context.Background(), "Domaine de la Romanée-Conti 2015")
		require.NoError(t, err)

		assert.Equal(t, models.RouteCellar, resp.Route)
		assert.True(t, resp.WineLookup)
		assert.True(t, matched)
		require.NotNil(t, resp.Match)
	})

	t.Run("equal route scores break ties by priority order", func(t *testing.T) {
		provider := &mockModelProvider{active: map[models.ModelKind]*ActiveModel{
			models.ModelKindRoute: {
				VersionID: uuid.New(),
				Kind:      models.ModelKindRoute,
				Weights:   uniformWeights(ml.RouteSchemaV1),
				Schema:    ml.RouteSchemaV1,
			},
		}}
		svc := newTestAskService(provider, &mockRetriever{}, &mockMatcher{})

		resp, err := svc.Ask(context.Background(), "tell me about tannins")
		require.NoError(t, err)

		assert.Equal(t, models.RouteRAG, resp.Route)
		assert.Len(t, resp.RouteScores, 3)
		assert.NotContains(t, resp.Fallbacks, "route")
	})

	t.Run("reranker reorders passages by model score", func(t *testing.T) {
		// Positive weight on similarity only: rerank order should follow
		// retrieval score even though retrieval returned them inverted.
		weights := uniformWeights(ml.RerankerSchemaV1)
		weights["similarity"] = 4

		provider := &mockModelProvider{active: map[models.ModelKind]*ActiveModel{
			models.ModelKindReranker: {
				VersionID: uuid.New(),
				Kind:      models.ModelKindReranker,
				Weights:   weights,
				Schema:    ml.RerankerSchemaV1,
			},
		}}

		low := models.RetrievalResult{ChunkID: uuid.New(), Score: 0.2, Content: "low"}
		high := models.RetrievalResult{ChunkID: uuid.New(), Score: 0.9, Content: "high"}

		svc := newTestAskService(provider, &mockRetriever{
			retrieveFunc: func(context.Context, string, int) ([]models.RetrievalResult, error) {
				return []models.RetrievalResult{low, high}, nil
			},
		}, &mockMatcher{})

		resp, err := svc.Ask(context.Background(), "what pairs with duck")
		require.NoError(t, err)

		require.Len(t, resp.Passages, 2)
		assert.Equal(t, "high", resp.Passages[0].Content)
		require.NotNil(t, resp.Passages[0].RerankScore)
		assert.Greater(t, *resp.Passages[0].RerankScore, *resp.Passages[1].RerankScore)
	})

	t.Run("retrieval outage degrades to the direct route", func(t *testing.T) {
		svc := newTestAskService(&mockModelProvider{}, &mockRetriever{
			retrieveFunc: func(context.Context, string, int) ([]models.RetrievalResult, error) {
				return nil, apperrors.NewRetrievalUnavailableError(assert.AnError)
			},
		}, &mockMatcher{})

		resp, err := svc.Ask(context.Background(), "what pairs with salmon")
		require.NoError(t, err)

		assert.Equal(t, models.RouteDirect, resp.Route)
		assert.Contains(t, resp.Fallbacks, "retrieval")
		assert.Empty(t, resp.Passages)
	})
}
