package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// All metric interfaces here are nil-safe at the call sites: constructors
// return (nil, nil) when the meter is nil (metrics disabled) and callers
// guard with "if metrics != nil".

// CacheMetrics records cache hit/miss metrics with bounded cardinality (cache name).
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
}

type cacheMetrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewCacheMetrics creates CacheMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	hits, err := meter.Int64Counter(
		MetricNameCacheHits,
		metric.WithDescription("Number of cache lookups that returned a cached value. Label cache: query_embedding, active_model."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache hits counter: %w", err)
	}

	misses, err := meter.Int64Counter(
		MetricNameCacheMisses,
		metric.WithDescription("Number of cache lookups that missed and triggered a load from the backing store."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache misses counter: %w", err)
	}

	return &cacheMetrics{hits: hits, misses: misses}, nil
}

func (c *cacheMetrics) RecordHit(ctx context.Context, cacheName string) {
	c.hits.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCache, normalize(cacheName, AllowedCacheNames)),
	))
}

func (c *cacheMetrics) RecordMiss(ctx context.Context, cacheName string) {
	c.misses.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCache, normalize(cacheName, AllowedCacheNames)),
	))
}

// MatchMetrics records fuzzy-match request outcomes.
type MatchMetrics interface {
	RecordMatch(ctx context.Context, status string)
}

type matchMetrics struct {
	requests metric.Int64Counter
}

// NewMatchMetrics creates MatchMetrics. Returns (nil, nil) when meter is nil.
func NewMatchMetrics(meter metric.Meter) (MatchMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameMatchRequests,
		metric.WithDescription("Number of wine match requests by outcome status."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create match requests counter: %w", err)
	}

	return &matchMetrics{requests: requests}, nil
}

func (m *matchMetrics) RecordMatch(ctx context.Context, status string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStatus, normalize(status, AllowedMatchStatuses)),
	))
}

// AskMetrics records question answering outcomes and retrieval latency.
type AskMetrics interface {
	RecordAsk(ctx context.Context, route string)
	RecordRetrievalDuration(ctx context.Context, d time.Duration)
}

type askMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewAskMetrics creates AskMetrics. Returns (nil, nil) when meter is nil.
func NewAskMetrics(meter metric.Meter) (AskMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameAskRequests,
		metric.WithDescription("Number of ask requests by chosen route."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ask requests counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameRetrievalDuration,
		metric.WithDescription("Vector retrieval latency including query embedding."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create retrieval duration histogram: %w", err)
	}

	return &askMetrics{requests: requests, duration: duration}, nil
}

func (m *askMetrics) RecordAsk(ctx context.Context, route string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrRoute, normalize(route, AllowedRoutes)),
	))
}

func (m *askMetrics) RecordRetrievalDuration(ctx context.Context, d time.Duration) {
	m.duration.Record(ctx, d.Seconds())
}

// TrainerMetrics records training run outcomes and durations per model kind.
type TrainerMetrics interface {
	RecordRun(ctx context.Context, kind, status string, d time.Duration)
}

type trainerMetrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewTrainerMetrics creates TrainerMetrics. Returns (nil, nil) when meter is nil.
func NewTrainerMetrics(meter metric.Meter) (TrainerMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional
		return nil, nil
	}

	runs, err := meter.Int64Counter(
		MetricNameTrainingRuns,
		metric.WithDescription("Number of per-kind training runs by outcome. skipped = not enough examples."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create training runs counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameTrainingDuration,
		metric.WithDescription("Wall time of one per-kind training run."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create training duration histogram: %w", err)
	}

	return &trainerMetrics{runs: runs, duration: duration}, nil
}

func (m *trainerMetrics) RecordRun(ctx context.Context, kind, status string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrKind, normalize(kind, AllowedModelKinds)),
		attribute.String(AttrStatus, normalize(status, AllowedRunStatuses)),
	)
	m.runs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
}

// EmbeddingMetrics records chunk embedding job outcomes.
type EmbeddingMetrics interface {
	RecordJob(ctx context.Context, status string)
}

type embeddingMetrics struct {
	jobs metric.Int64Counter
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil.
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional
		return nil, nil
	}

	jobs, err := meter.Int64Counter(
		MetricNameEmbeddingJobs,
		metric.WithDescription("Number of chunk embedding jobs by outcome."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding jobs counter: %w", err)
	}

	return &embeddingMetrics{jobs: jobs}, nil
}

func (m *embeddingMetrics) RecordJob(ctx context.Context, status string) {
	m.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStatus, normalize(status, AllowedRunStatuses)),
	))
}

// WebhookMetrics records webhook delivery outcomes.
type WebhookMetrics interface {
	RecordDelivery(ctx context.Context, status string)
	RecordDisabled(ctx context.Context, reason string)
}

type webhookMetrics struct {
	deliveries metric.Int64Counter
	disabled   metric.Int64Counter
}

// AllowedDeliveryStatuses for sommelier_webhook_deliveries_total.
var AllowedDeliveryStatuses = map[string]bool{
	"success":      true,
	"retry":        true,
	"failed_final": true,
}

// NewWebhookMetrics creates WebhookMetrics. Returns (nil, nil) when meter is nil.
func NewWebhookMetrics(meter metric.Meter) (WebhookMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional
		return nil, nil
	}

	deliveries, err := meter.Int64Counter(
		MetricNameWebhookDeliveries,
		metric.WithDescription("Number of webhook delivery attempts by outcome."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook deliveries counter: %w", err)
	}

	disabled, err := meter.Int64Counter(
		MetricNameWebhookDisabled,
		metric.WithDescription("Number of webhooks auto-disabled, by reason."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook disabled counter: %w", err)
	}

	return &webhookMetrics{deliveries: deliveries, disabled: disabled}, nil
}

func (m *webhookMetrics) RecordDelivery(ctx context.Context, status string) {
	m.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrStatus, normalize(status, AllowedDeliveryStatuses)),
	))
}

func (m *webhookMetrics) RecordDisabled(ctx context.Context, reason string) {
	m.disabled.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrReason, normalize(reason, AllowedDisabledReasons)),
	))
}

// RegisterQueueDepthGauge registers an observable gauge fed by fetchDepth,
// which reports the number of available jobs per queue. No-op when meter is nil.
func RegisterQueueDepthGauge(meter metric.Meter, fetchDepth func(ctx context.Context) (map[string]int64, error)) error {
	if meter == nil {
		return nil
	}

	gauge, err := meter.Int64ObservableGauge(
		MetricNameRiverQueueDepth,
		metric.WithDescription("Available jobs per river queue."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("create queue depth gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		depths, err := fetchDepth(ctx)
		if err != nil {
			return fmt.Errorf("fetch queue depth: %w", err)
		}

		for queue, depth := range depths {
			o.ObserveInt64(gauge, depth, metric.WithAttributes(attribute.String("queue", queue)))
		}

		return nil
	}, gauge)
	if err != nil {
		return fmt.Errorf("register queue depth callback: %w", err)
	}

	return nil
}
