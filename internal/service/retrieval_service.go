package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/observability"
	"github.com/vinoteca/sommelier/pkg/cache"
)

const queryEmbeddingCacheName = "query_embedding"

// ErrEmptyQuery is returned when a retrieval or ask query is blank.
var ErrEmptyQuery = errors.New("query is required and must be non-empty")

// ChunksRepositoryForRetrieval provides the nearest-neighbor read.
type ChunksRepositoryForRetrieval interface {
	NearestChunks(ctx context.Context, queryEmbedding []float32, topK int, minScore float64) ([]models.RetrievalResult, error)
}

// RetrievalServiceParams configures RetrievalService.
// QueryCache, CacheMetrics, and AskMetrics may be nil.
type RetrievalServiceParams struct {
	EmbeddingClient EmbeddingClient
	ChunksRepo      ChunksRepositoryForRetrieval
	TopK            int
	MinScore        float64
	QueryCache      *cache.LoaderCache[string, []float32]
	CacheMetrics    observability.CacheMetrics
	AskMetrics      observability.AskMetrics
	Logger          *slog.Logger
}

// RetrievalService embeds queries and finds the nearest document chunks.
type RetrievalService struct {
	embeddingClient EmbeddingClient
	chunksRepo      ChunksRepositoryForRetrieval
	topK            int
	minScore        float64
	queryCache      *cache.LoaderCache[string, []float32]
	cacheMetrics    observability.CacheMetrics
	askMetrics      observability.AskMetrics
	logger          *slog.Logger
}

// NewRetrievalService creates a RetrievalService.
func NewRetrievalService(p RetrievalServiceParams) *RetrievalService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RetrievalService{
		embeddingClient: p.EmbeddingClient,
		chunksRepo:      p.ChunksRepo,
		topK:            p.TopK,
		minScore:        p.MinScore,
		queryCache:      p.QueryCache,
		cacheMetrics:    p.CacheMetrics,
		askMetrics:      p.AskMetrics,
		logger:          logger,
	}
}

// Retrieve embeds the query and returns up to topK nearest chunks in
// non-increasing score order. topK <= 0 uses the configured default.
// An empty corpus yields an empty slice, not an error. Embedding or
// database failures surface as RetrievalUnavailableError so the caller can
// fall back to a non-retrieval path.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if topK <= 0 {
		topK = s.topK
	}

	start := time.Now()

	embedding, err := s.queryEmbedding(ctx, query)
	if err != nil {
		s.logger.Error("retrieval: create embedding failed", "error", err)

		return nil, apperrors.NewRetrievalUnavailableError(err)
	}

	results, err := s.chunksRepo.NearestChunks(ctx, embedding, topK, s.minScore)
	if err != nil {
		s.logger.Error("retrieval: nearest chunks failed", "error", err)

		return nil, apperrors.NewRetrievalUnavailableError(err)
	}

	if s.askMetrics != nil {
		s.askMetrics.RecordRetrievalDuration(ctx, time.Since(start))
	}

	if results == nil {
		results = []models.RetrievalResult{}
	}

	return results, nil
}

func (s *RetrievalService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.queryCache == nil {
		return s.embeddingClient.CreateEmbedding(ctx, query)
	}

	embedding, hit, err := s.queryCache.GetWithStats(ctx, query, func(ctx context.Context, q string) ([]float32, error) {
		return s.embeddingClient.CreateEmbedding(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	if s.cacheMetrics != nil {
		if hit {
			s.cacheMetrics.RecordHit(ctx, queryEmbeddingCacheName)
		} else {
			s.cacheMetrics.RecordMiss(ctx, queryEmbeddingCacheName)
		}
	}

	return embedding, nil
}
