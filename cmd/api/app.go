package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"golang.org/x/time/rate"

	"github.com/vinoteca/sommelier/internal/api/handlers"
	"github.com/vinoteca/sommelier/internal/api/middleware"
	"github.com/vinoteca/sommelier/internal/config"
	"github.com/vinoteca/sommelier/internal/ml"
	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/observability"
	"github.com/vinoteca/sommelier/internal/openai"
	"github.com/vinoteca/sommelier/internal/repository"
	"github.com/vinoteca/sommelier/internal/service"
	"github.com/vinoteca/sommelier/internal/worker"
	"github.com/vinoteca/sommelier/internal/workers"
	"github.com/vinoteca/sommelier/pkg/cache"
	"github.com/vinoteca/sommelier/pkg/vision"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg           *config.Config
	db            *pgxpool.Pool
	server        *http.Server
	river         *river.Client[pgx.Tx]
	scheduler     *worker.RetrainScheduler
	meterProvider *sdkmetric.MeterProvider
}

const queryEmbeddingCacheSize = 1000

// appMetrics groups the per-concern metric recorders. All fields are nil when
// metrics are disabled.
type appMetrics struct {
	cache     observability.CacheMetrics
	match     observability.MatchMetrics
	ask       observability.AskMetrics
	trainer   observability.TrainerMetrics
	embedding observability.EmbeddingMetrics
	webhook   observability.WebhookMetrics
}

// setupMetrics creates the meter provider and metric recorders when metrics
// are enabled. Returns (nil, zero metrics, nil) when the exporter is disabled.
func setupMetrics(cfg *config.Config) (*sdkmetric.MeterProvider, appMetrics, error) {
	var m appMetrics

	mp, err := observability.NewMeterProvider(cfg)
	if err != nil {
		return nil, m, fmt.Errorf("create meter provider: %w", err)
	}

	if mp == nil {
		return nil, m, nil
	}

	meter := mp.Meter("sommelier")

	constructors := []func(metric.Meter) error{
		func(mt metric.Meter) (err error) { m.cache, err = observability.NewCacheMetrics(mt); return err },
		func(mt metric.Meter) (err error) { m.match, err = observability.NewMatchMetrics(mt); return err },
		func(mt metric.Meter) (err error) { m.ask, err = observability.NewAskMetrics(mt); return err },
		func(mt metric.Meter) (err error) { m.trainer, err = observability.NewTrainerMetrics(mt); return err },
		func(mt metric.Meter) (err error) { m.embedding, err = observability.NewEmbeddingMetrics(mt); return err },
		func(mt metric.Meter) (err error) { m.webhook, err = observability.NewWebhookMetrics(mt); return err },
	}
	for _, create := range constructors {
		if err := create(meter); err != nil {
			if err2 := observability.ShutdownMeterProvider(context.Background(), mp); err2 != nil {
				slog.Error("shutdown meter provider after metrics error", "error", err2)
			}

			return nil, appMetrics{}, fmt.Errorf("create metrics: %w", err)
		}
	}

	return mp, m, nil
}

// NewApp builds and wires all components. It does not start the HTTP server or
// River; call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	var (
		meterProvider *sdkmetric.MeterProvider
		metrics       appMetrics
		err           error
	)

	if cfg.MetricsExporter == "" {
		slog.Warn("metrics not enabled (METRICS_EXPORTER empty or unset)")
	} else {
		meterProvider, metrics, err = setupMetrics(cfg)
		if err != nil {
			return nil, err
		}
	}

	if meterProvider != nil {
		otel.SetMeterProvider(meterProvider)
	}

	// Repositories
	winesRepo := repository.NewWinesRepository(db)
	documentsRepo := repository.NewDocumentsRepository(db)
	examplesRepo := repository.NewTrainingExamplesRepository(db)
	versionsRepo := repository.NewModelVersionsRepository(db)
	schemasRepo := repository.NewFeatureSchemasRepository(db)
	webhooksRepo := repository.NewWebhooksRepository(db)

	if err := seedFeatureSchemas(ctx, schemasRepo); err != nil {
		return nil, err
	}

	// River workers and queues
	webhookSender := service.NewWebhookSenderImpl(webhooksRepo, metrics.webhook)
	webhookWorker := workers.NewWebhookDispatchWorker(webhooksRepo, webhookSender, metrics.webhook)
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, webhookWorker)

	queues := map[string]river.QueueConfig{
		service.WebhooksQueueName: {MaxWorkers: cfg.WebhookMaxConcurrent},
	}

	var embeddingClient service.EmbeddingClient

	if cfg.OpenAIAPIKey != "" {
		embeddingClient = openai.NewClient(cfg.OpenAIAPIKey,
			openai.WithModel(cfg.EmbeddingModel),
			openai.WithDimensions(cfg.EmbeddingDimensions),
		)

		limiter := rate.NewLimiter(rate.Limit(cfg.EmbeddingRateLimit), 1)
		embeddingWorker := workers.NewChunkEmbeddingWorker(documentsRepo, embeddingClient, limiter, metrics.embedding)
		river.AddWorker(riverWorkers, embeddingWorker)

		queues[service.EmbeddingsQueueName] = river.QueueConfig{MaxWorkers: cfg.EmbeddingMaxConcurrent}

		slog.Info("embeddings enabled", "model", cfg.EmbeddingModel, "dimensions", cfg.EmbeddingDimensions)
	} else {
		slog.Warn("embeddings disabled (OPENAI_API_KEY not set); document ingestion and retrieval are unavailable")
	}

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues:  queues,
		Workers: riverWorkers,
	})
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), meterProvider); err2 != nil {
			slog.Error("shutdown meter provider after River client error", "error", err2)
		}

		return nil, fmt.Errorf("create River client: %w", err)
	}

	if meterProvider != nil {
		err := observability.RegisterQueueDepthGauge(meterProvider.Meter("sommelier"),
			func(ctx context.Context) (map[string]int64, error) { return queueDepths(ctx, db) })
		if err != nil {
			return nil, fmt.Errorf("register queue depth gauge: %w", err)
		}
	}

	// Core services
	matchService := service.NewMatchService(service.MatchServiceParams{
		WinesRepo: winesRepo,
		Weights: service.MatchWeights{
			Producer: cfg.MatchProducerWeight,
			WineName: cfg.MatchWineNameWeight,
			Vintage:  cfg.MatchVintageWeight,
			Alcohol:  cfg.MatchABVWeight,
		},
		Thresholds: service.MatchThresholds{
			Exact:  cfg.MatchExactThreshold,
			Likely: cfg.MatchLikelyThreshold,
		},
		MaxCandidates: cfg.MatchMaxCandidates,
		BlockingLimit: cfg.MatchBlockingLimit,
		Metrics:       metrics.match,
	})

	modelCache, err := cache.NewLoaderCache[models.ModelKind, *service.ActiveModel](
		len(models.ModelKinds), func(k models.ModelKind) string { return string(k) },
	)
	if err != nil {
		return nil, fmt.Errorf("create model cache: %w", err)
	}

	modelProvider := service.NewModelProvider(service.ModelProviderParams{
		VersionsRepo: versionsRepo,
		SchemasRepo:  schemasRepo,
		Cache:        modelCache,
		CacheMetrics: metrics.cache,
	})

	var (
		retrievalService *service.RetrievalService
		documentService  *service.DocumentService
	)

	if embeddingClient != nil {
		queryCache, err := cache.NewLoaderCache[string, []float32](
			queryEmbeddingCacheSize, func(q string) string { return q },
		)
		if err != nil {
			return nil, fmt.Errorf("create query embedding cache: %w", err)
		}

		retrievalService = service.NewRetrievalService(service.RetrievalServiceParams{
			EmbeddingClient: embeddingClient,
			ChunksRepo:      documentsRepo,
			TopK:            cfg.RetrievalTopK,
			MinScore:        cfg.RetrievalMinScore,
			QueryCache:      queryCache,
			CacheMetrics:    metrics.cache,
			AskMetrics:      metrics.ask,
		})

		documentService = service.NewDocumentService(documentsRepo, riverClient, cfg.EmbeddingMaxAttempts, nil)
	}

	webhookProvider := service.NewWebhookProvider(webhooksRepo, riverClient, cfg.WebhookMaxAttempts, nil)

	trainingService := service.NewTrainingService(service.TrainingServiceParams{
		ExamplesRepo: examplesRepo,
		VersionsRepo: versionsRepo,
		SchemasRepo:  schemasRepo,
		Config: service.TrainingConfig{
			MinExamples:     cfg.TrainMinExamples,
			HoldoutFraction: cfg.TrainHoldoutFraction,
			LearningRate:    cfg.TrainLearningRate,
			L2Lambda:        cfg.TrainL2Lambda,
			MaxIterations:   cfg.TrainMaxIterations,
		},
		Invalidator: modelProvider,
		Notifier:    webhookProvider,
		Metrics:     metrics.trainer,
	})

	feedbackService := service.NewFeedbackService(examplesRepo, schemasRepo, nil)
	webhooksService := service.NewWebhooksService(webhooksRepo, int64(cfg.WebhookMaxCount))

	// Handlers
	winesHandler := handlers.NewWinesHandler(matchService, winesRepo)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService)
	modelsHandler := handlers.NewModelsHandler(trainingService)
	webhooksHandler := handlers.NewWebhooksHandler(webhooksService)
	healthHandler := handlers.NewHealthHandler()

	var askHandler *handlers.AskHandler

	if retrievalService != nil {
		askService := service.NewAskService(service.AskServiceParams{
			Retriever:       retrievalService,
			Matcher:         matchService,
			Models:          modelProvider,
			IntentThreshold: cfg.IntentThreshold,
			Metrics:         metrics.ask,
		})
		askHandler = handlers.NewAskHandler(askService)
	}

	var documentsHandler *handlers.DocumentsHandler

	if documentService != nil {
		documentsHandler = handlers.NewDocumentsHandler(documentService)
	}

	var labelsHandler *handlers.LabelsHandler

	if cfg.VisionServiceURL != "" {
		visionClient := vision.NewClient(cfg.VisionServiceURL, cfg.VisionAPIKey)
		labelService := service.NewLabelService(visionClient, matchService, nil)
		labelsHandler = handlers.NewLabelsHandler(labelService)
	} else {
		slog.Warn("label scans disabled (VISION_SERVICE_URL not set)")
	}

	var scheduler *worker.RetrainScheduler

	if cfg.RetrainInterval > 0 {
		scheduler = worker.NewRetrainScheduler(trainingService, cfg.RetrainInterval)
	}

	server := newHTTPServer(cfg, muxHandlers{
		health:    healthHandler,
		wines:     winesHandler,
		ask:       askHandler,
		labels:    labelsHandler,
		documents: documentsHandler,
		feedback:  feedbackHandler,
		models:    modelsHandler,
		webhooks:  webhooksHandler,
	}, meterProvider)

	return &App{
		cfg:           cfg,
		db:            db,
		server:        server,
		river:         riverClient,
		scheduler:     scheduler,
		meterProvider: meterProvider,
	}, nil
}

// seedFeatureSchemas inserts schema version 1 for each model kind if the kind
// has no schema yet. Idempotent across restarts.
func seedFeatureSchemas(ctx context.Context, repo *repository.FeatureSchemasRepository) error {
	seeds := map[models.ModelKind][]string{
		models.ModelKindReranker: ml.RerankerSchemaV1,
		models.ModelKindRoute:    ml.RouteSchemaV1,
		models.ModelKindIntent:   ml.IntentSchemaV1,
	}

	for kind, names := range seeds {
		if err := repo.Seed(ctx, kind, names); err != nil {
			return fmt.Errorf("seed %s feature schema: %w", kind, err)
		}
	}

	return nil
}

// muxHandlers carries the handlers that make up the HTTP API. ask, labels,
// and documents may be nil when their backing dependency is not configured;
// their routes are then not registered.
type muxHandlers struct {
	health    *handlers.HealthHandler
	wines     *handlers.WinesHandler
	ask       *handlers.AskHandler
	labels    *handlers.LabelsHandler
	documents *handlers.DocumentsHandler
	feedback  *handlers.FeedbackHandler
	models    *handlers.ModelsHandler
	webhooks  *handlers.WebhooksHandler
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health and
// /metrics, API key on /v1/). Handler chain: RequestID -> otelhttp ->
// Logging -> MaxBody -> mux so access logs carry IDs from the context.
func newHTTPServer(cfg *config.Config, h muxHandlers, meterProvider *sdkmetric.MeterProvider) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", h.health.Check)

	if meterProvider != nil {
		public.Handle("GET /metrics", promhttp.Handler())
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/wines/match", h.wines.Match)
	protected.HandleFunc("POST /v1/wines", h.wines.Create)
	protected.HandleFunc("GET /v1/wines/{id}", h.wines.Get)

	protected.HandleFunc("POST /v1/feedback", h.feedback.Create)
	protected.HandleFunc("GET /v1/feedback/{kind}/count", h.feedback.Count)

	protected.HandleFunc("POST /v1/models/train", h.models.TrainAll)
	protected.HandleFunc("POST /v1/models/{kind}/train", h.models.Train)
	protected.HandleFunc("POST /v1/models/{kind}/versions/{id}/activate", h.models.Activate)
	protected.HandleFunc("GET /v1/models/{kind}/versions", h.models.ListVersions)
	protected.HandleFunc("GET /v1/models/{kind}/active", h.models.GetActive)

	protected.HandleFunc("POST /v1/webhooks", h.webhooks.Create)
	protected.HandleFunc("GET /v1/webhooks", h.webhooks.List)
	protected.HandleFunc("GET /v1/webhooks/{id}", h.webhooks.Get)
	protected.HandleFunc("PATCH /v1/webhooks/{id}", h.webhooks.Update)
	protected.HandleFunc("DELETE /v1/webhooks/{id}", h.webhooks.Delete)

	// ask and documents are nil when no embeddings API is configured;
	// retrieval-backed answering and ingestion are not registered then.
	if h.ask != nil {
		protected.HandleFunc("POST /v1/ask", h.ask.Ask)
	}

	if h.documents != nil {
		protected.HandleFunc("POST /v1/documents", h.documents.Create)
		protected.HandleFunc("GET /v1/documents", h.documents.List)
		protected.HandleFunc("GET /v1/documents/{id}", h.documents.Get)
		protected.HandleFunc("DELETE /v1/documents/{id}", h.documents.Delete)
		protected.HandleFunc("POST /v1/documents/backfill-embeddings", h.documents.Backfill)
	}

	// labels is nil when no vision service is configured.
	if h.labels != nil {
		protected.HandleFunc("POST /v1/labels/scan", h.labels.Scan)
	}

	protectedWithAuth := middleware.Auth(cfg.APIKey)(protected)
	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedWithAuth)
	mux.Handle("/", public)

	otelOpts := []otelhttp.Option{
		// Skip HTTP metrics for health checks and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	inner := middleware.Logging(middleware.MaxBody(cfg.MaxRequestBodyBytes)(mux))
	handler := otelhttp.NewHandler(inner, "sommelier-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 30 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server, River, and the retrain scheduler, then blocks
// until ctx is cancelled (e.g. signal) or a component fails. Caller should
// then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	if a.scheduler != nil {
		go a.scheduler.Start(riverCtx)
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// queueDepths reports available, retryable, and scheduled jobs per queue.
func queueDepths(ctx context.Context, db *pgxpool.Pool) (map[string]int64, error) {
	rows, err := db.Query(ctx,
		`SELECT queue, COUNT(*) FROM river_job WHERE state IN ($1, $2, $3) GROUP BY queue`,
		rivertype.JobStateAvailable, rivertype.JobStateRetryable, rivertype.JobStateScheduled,
	)
	if err != nil {
		return nil, fmt.Errorf("query queue depth: %w", err)
	}
	defer rows.Close()

	depths := make(map[string]int64)

	for rows.Next() {
		var (
			queue string
			count int64
		)

		if err := rows.Scan(&queue, &count); err != nil {
			return nil, fmt.Errorf("scan queue depth: %w", err)
		}

		depths[queue] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue depth: %w", err)
	}

	return depths, nil
}

// Shutdown stops the server and River in order. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := observability.ShutdownMeterProvider(ctx, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown meter provider", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
