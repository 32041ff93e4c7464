// Package workers provides River job workers (chunk embedding, webhook delivery).
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/vinoteca/sommelier/internal/models"
	"github.com/vinoteca/sommelier/internal/observability"
	"github.com/vinoteca/sommelier/internal/service"
)

// ChunkEmbeddingWorker embeds one document chunk and stores the vector.
type ChunkEmbeddingWorker struct {
	river.WorkerDefaults[service.ChunkEmbeddingArgs]

	repo            chunkEmbeddingRepo
	embeddingClient service.EmbeddingClient
	limiter         *rate.Limiter
	metrics         observability.EmbeddingMetrics
}

// chunkEmbeddingRepo is the minimal repo interface needed by the worker.
type chunkEmbeddingRepo interface {
	GetChunk(ctx context.Context, id uuid.UUID) (*models.DocumentChunk, error)
	SetEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error
}

// NewChunkEmbeddingWorker creates a worker that fetches the chunk, embeds its
// content, and persists the vector. limiter throttles provider calls across
// concurrent jobs; metrics may be nil when metrics are disabled.
func NewChunkEmbeddingWorker(
	repo chunkEmbeddingRepo,
	embeddingClient service.EmbeddingClient,
	limiter *rate.Limiter,
	metrics observability.EmbeddingMetrics,
) *ChunkEmbeddingWorker {
	return &ChunkEmbeddingWorker{
		repo:            repo,
		embeddingClient: embeddingClient,
		limiter:         limiter,
		metrics:         metrics,
	}
}

const chunkEmbeddingTimeout = 30 * time.Second

// Timeout limits how long a single embedding job can run.
func (w *ChunkEmbeddingWorker) Timeout(*river.Job[service.ChunkEmbeddingArgs]) time.Duration {
	return chunkEmbeddingTimeout
}

// Work loads the chunk, generates the embedding, and persists it. A chunk
// with blank content is skipped permanently; it can never enter the retrieval
// candidate set anyway.
func (w *ChunkEmbeddingWorker) Work(ctx context.Context, job *river.Job[service.ChunkEmbeddingArgs]) error {
	args := job.Args

	chunk, err := w.repo.GetChunk(ctx, args.ChunkID)
	if err != nil {
		w.record(ctx, "failed")
		slog.Error("chunk embedding: get chunk failed",
			"chunk_id", args.ChunkID,
			"error", err,
		)

		return nil // no retry when the chunk is gone
	}

	if strings.TrimSpace(chunk.Content) == "" {
		w.record(ctx, "skipped")
		slog.Warn("chunk embedding: blank content, skipping", "chunk_id", args.ChunkID)

		return nil
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	embedding, err := w.embeddingClient.CreateEmbedding(ctx, chunk.Content)
	if err != nil {
		if job.Attempt >= job.MaxAttempts {
			w.record(ctx, "failed")
			slog.Error("chunk embedding: provider failed (final attempt)",
				"chunk_id", args.ChunkID,
				"error", err,
			)

			return nil
		}

		return fmt.Errorf("create embedding: %w", err)
	}

	if err := w.repo.SetEmbedding(ctx, args.ChunkID, embedding); err != nil {
		w.record(ctx, "failed")
		slog.Error("chunk embedding: store failed",
			"chunk_id", args.ChunkID,
			"error", err,
		)

		return fmt.Errorf("set chunk embedding: %w", err)
	}

	w.record(ctx, "success")
	slog.Info("chunk embedding: stored", "chunk_id", args.ChunkID)

	return nil
}

func (w *ChunkEmbeddingWorker) record(ctx context.Context, status string) {
	if w.metrics != nil {
		w.metrics.RecordJob(ctx, status)
	}
}
