package ml

import (
	"regexp"
	"strings"

	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/textnorm"
)

// Default feature schemas, version 1. The registry is seeded from these; the
// trainer and inference always use the stored registry copy so weights and
// schema versions stay paired.
var (
	// RerankerSchemaV1 orders the features scored per retrieved passage.
	RerankerSchemaV1 = []string{
		"similarity",
		"rank_reciprocal",
		"token_overlap",
		"content_len",
		"exact_phrase",
	}

	// RouteSchemaV1 orders the features scored per (query, route) candidate.
	RouteSchemaV1 = []string{
		"token_count",
		"has_vintage_year",
		"wine_term_overlap",
		"question_word",
		"route_rag",
		"route_cellar",
		"route_direct",
	}

	// IntentSchemaV1 orders the features of the specific-wine-lookup detector.
	IntentSchemaV1 = []string{
		"has_vintage_year",
		"has_producer_marker",
		"token_count",
		"digit_ratio",
		"question_word",
	}
)

var vintageYearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// wineTerms is the lexicon behind the wine_term_overlap feature and the
// keyword fallback used when no intent model is active.
var wineTerms = map[string]bool{
	"wine": true, "vintage": true, "grape": true, "producer": true,
	"bottle": true, "cellar": true, "cuvee": true, "cru": true,
	"appellation": true, "tannin": true, "terroir": true, "blend": true,
	"red": true, "white": true, "rose": true, "sparkling": true,
}

// producerMarkers are tokens that usually precede a producer name.
var producerMarkers = map[string]bool{
	"domaine": true, "chateau": true, "bodega": true, "weingut": true,
	"tenuta": true, "maison": true, "quinta": true, "clos": true,
}

var questionWords = map[string]bool{
	"what": true, "which": true, "who": true, "where": true,
	"when": true, "why": true, "how": true, "is": true, "does": true,
}

// RerankFeatures builds the reranker feature map for one retrieved passage.
// rank is the zero-based position in the raw retrieval order.
func RerankFeatures(query string, result models.RetrievalResult, rank int) map[string]any {
	contentNorm := textnorm.Normalize(result.Content)
	queryNorm := textnorm.Normalize(query)

	return map[string]any{
		"similarity":      result.Score,
		"rank_reciprocal": 1.0 / float64(rank+1),
		"token_overlap":   textnorm.TokenOverlap(query, result.Content),
		"content_len":     clamp01(float64(len(result.Content)) / 1000.0),
		"exact_phrase":    queryNorm != "" && strings.Contains(contentNorm, queryNorm),
	}
}

// RouteFeatures builds the route-model feature map for one (query, route)
// candidate. The route one-hots let a single weight set learn per-route
// offsets.
func RouteFeatures(query string, route models.RouteKind) map[string]any {
	tokens := textnorm.Tokens(query)

	return map[string]any{
		"token_count":       clamp01(float64(len(tokens)) / 20.0),
		"has_vintage_year":  vintageYearRe.MatchString(query),
		"wine_term_overlap": lexiconOverlap(tokens, wineTerms),
		"question_word":     startsWithQuestionWord(tokens),
		"route_rag":         route == models.RouteRAG,
		"route_cellar":      route == models.RouteCellar,
		"route_direct":      route == models.RouteDirect,
	}
}

// IntentFeatures builds the specific-wine-lookup feature map for a query.
func IntentFeatures(query string) map[string]any {
	tokens := textnorm.Tokens(query)

	return map[string]any{
		"has_vintage_year":    vintageYearRe.MatchString(query),
		"has_producer_marker": lexiconOverlap(tokens, producerMarkers) > 0,
		"token_count":         clamp01(float64(len(tokens)) / 20.0),
		"digit_ratio":         digitRatio(query),
		"question_word":       startsWithQuestionWord(tokens),
	}
}

// WineLookupHeuristic is the documented keyword fallback for intent detection
// used only when no intent model version is active: a query is treated as a
// specific-wine lookup when it carries a vintage year or a producer marker.
func WineLookupHeuristic(query string) bool {
	if vintageYearRe.MatchString(query) {
		return true
	}

	return lexiconOverlap(textnorm.Tokens(query), producerMarkers) > 0
}

func lexiconOverlap(tokens []string, lexicon map[string]bool) float64 {
	if len(tokens) == 0 {
		return 0
	}

	hits := 0
	for _, tok := range tokens {
		if lexicon[tok] {
			hits++
		}
	}

	return float64(hits) / float64(len(tokens))
}

func startsWithQuestionWord(tokens []string) bool {
	return len(tokens) > 0 && questionWords[tokens[0]]
}

// digitRatio is digits over runes, not bytes, so multibyte text does not
// dilute the feature.
func digitRatio(s string) float64 {
	digits, runes := 0, 0
	for _, r := range s {
		runes++
		if r >= '0' && r <= '9' {
			digits++
		}
	}

	if runes == 0 {
		return 0
	}

	return float64(digits) / float64(runes)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
