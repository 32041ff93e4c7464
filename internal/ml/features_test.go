package ml

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinoteca/sommelier/internal/models"
)

func TestRerankFeatures(t *testing.T) {
	result := models.RetrievalResult{
		ChunkID: uuid.New(),
		Content: "Pinot Noir from Burgundy pairs well with duck.",
		Score:   0.83,
	}

	features := RerankFeatures("pinot noir pairing", result, 0)

	// Every schema feature must be present so vectorization never falls back
	// to implicit zeros for computed features.
	for _, name := range RerankerSchemaV1 {
		assert.Contains(t, features, name)
	}

	vec, err := Vectorize(features, RerankerSchemaV1)
	require.NoError(t, err)
	assert.Len(t, vec, len(RerankerSchemaV1))

	assert.InDelta(t, 0.83, features["similarity"].(float64), 1e-9)
	assert.InDelta(t, 1.0, features["rank_reciprocal"].(float64), 1e-9)
	assert.Greater(t, features["token_overlap"].(float64), 0.0)
}

func TestRerankFeatures_RankReciprocalDecays(t *testing.T) {
	r := models.RetrievalResult{Content: "text"}

	first := RerankFeatures("q", r, 0)["rank_reciprocal"].(float64)
	third := RerankFeatures("q", r, 2)["rank_reciprocal"].(float64)

	assert.Greater(t, first, third)
}

func TestRouteFeatures(t *testing.T) {
	features := RouteFeatures("what pairs with a 2018 Domaine X?", models.RouteRAG)

	for _, name := range RouteSchemaV1 {
		assert.Contains(t, features, name)
	}

	assert.True(t, features["has_vintage_year"].(bool))
	assert.True(t, features["question_word"].(bool))
	assert.True(t, features["route_rag"].(bool))
	assert.False(t, features["route_cellar"].(bool))

	_, err := Vectorize(features, RouteSchemaV1)
	require.NoError(t, err)
}

func TestIntentFeatures(t *testing.T) {
	features := IntentFeatures("Domaine de la Côte Pinot Noir 2019")

	for _, name := range IntentSchemaV1 {
		assert.Contains(t, features, name)
	}

	assert.True(t, features["has_vintage_year"].(bool))
	assert.True(t, features["has_producer_marker"].(bool))
	assert.Greater(t, features["digit_ratio"].(float64), 0.0)
}

func TestDigitRatio(t *testing.T) {
	assert.Equal(t, 0.0, digitRatio(""))
	assert.Equal(t, 0.0, digitRatio("margaux"))
	assert.InDelta(t, 0.5, digitRatio("2015ABCD"), 1e-9)
	// Accented text counts per rune: "Côte 2015" is 9 runes, 4 digits.
	assert.InDelta(t, 4.0/9.0, digitRatio("Côte 2015"), 1e-9)
}

func TestWineLookupHeuristic(t *testing.T) {
	assert.True(t, WineLookupHeuristic("Château Margaux 2015"))
	assert.True(t, WineLookupHeuristic("anything from domaine x"))
	assert.False(t, WineLookupHeuristic("what food pairs with white wine"))
	assert.False(t, WineLookupHeuristic(""))
}
