package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameMatchRequests     = "sommelier_match_requests_total"
	MetricNameAskRequests       = "sommelier_ask_requests_total"
	MetricNameRetrievalDuration = "sommelier_retrieval_duration_seconds"
	MetricNameTrainingRuns      = "sommelier_training_runs_total"
	MetricNameTrainingDuration  = "sommelier_training_duration_seconds"
	MetricNameEmbeddingJobs     = "sommelier_embedding_jobs_total"
	MetricNameCacheHits         = "sommelier_cache_hits_total"
	MetricNameCacheMisses       = "sommelier_cache_misses_total"
	MetricNameWebhookDeliveries = "sommelier_webhook_deliveries_total"
	MetricNameWebhookDisabled   = "sommelier_webhook_disabled_total"
	MetricNameRiverQueueDepth   = "sommelier_river_queue_depth"
)

// Attribute keys.
const (
	AttrStatus = "status"
	AttrRoute  = "route"
	AttrKind   = "kind"
	AttrReason = "reason"
	AttrCache  = "cache"
)

// AllowedMatchStatuses for sommelier_match_requests_total (bounded cardinality).
var AllowedMatchStatuses = map[string]bool{
	"EXACT_MATCH":  true,
	"LIKELY_MATCH": true,
	"NO_MATCH":     true,
	"error":        true,
}

// AllowedRoutes for sommelier_ask_requests_total.
var AllowedRoutes = map[string]bool{
	"rag":    true,
	"cellar": true,
	"direct": true,
}

// AllowedRunStatuses for sommelier_training_runs_total and sommelier_embedding_jobs_total.
var AllowedRunStatuses = map[string]bool{
	"success": true,
	"skipped": true,
	"failed":  true,
}

// AllowedModelKinds for the kind attribute.
var AllowedModelKinds = map[string]bool{
	"reranker": true,
	"route":    true,
	"intent":   true,
}

// AllowedDisabledReasons for sommelier_webhook_disabled_total.
var AllowedDisabledReasons = map[string]bool{
	"410_gone":     true,
	"max_attempts": true,
}

// AllowedCacheNames for the cache attribute.
var AllowedCacheNames = map[string]bool{
	"query_embedding": true,
	"active_model":    true,
}

func normalize(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "unknown"
}
