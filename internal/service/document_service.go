package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/vinoteca/sommelier/internal/models"
)

// DocumentsRepositoryForIngest provides the document reads and writes.
type DocumentsRepositoryForIngest interface {
	Create(ctx context.Context, req *models.CreateDocumentRequest) (*models.Document, []uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, limit, offset int) ([]models.Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListChunkIDsForBackfill(ctx context.Context) ([]uuid.UUID, error)
}

// DocumentService ingests documents and schedules chunk embedding jobs.
type DocumentService struct {
	docsRepo    DocumentsRepositoryForIngest
	inserter    JobInserter
	maxAttempts int
	logger      *slog.Logger
}

// NewDocumentService creates a DocumentService. maxAttempts caps embedding job
// retries; zero uses the River default.
func NewDocumentService(docsRepo DocumentsRepositoryForIngest, inserter JobInserter, maxAttempts int, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentService{
		docsRepo:    docsRepo,
		inserter:    inserter,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// IngestResponse reports a created document and how many embedding jobs were
// scheduled for its chunks.
type IngestResponse struct {
	Document      *models.Document `json:"document"`
	ChunkCount    int              `json:"chunk_count"`
	JobsScheduled int              `json:"jobs_scheduled"`
}

// Ingest stores a document with its chunks and enqueues one embedding job per
// chunk. Chunks stay out of the retrieval candidate set until their job
// completes. Enqueue failures are logged and counted, not fatal: the backfill
// sweep picks up chunks whose jobs were lost.
func (s *DocumentService) Ingest(ctx context.Context, req *models.CreateDocumentRequest) (*IngestResponse, error) {
	doc, chunkIDs, err := s.docsRepo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	scheduled := s.enqueueEmbeddings(ctx, chunkIDs)

	return &IngestResponse{
		Document:      doc,
		ChunkCount:    len(chunkIDs),
		JobsScheduled: scheduled,
	}, nil
}

// GetDocument returns one document.
func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return s.docsRepo.GetByID(ctx, id)
}

// ListDocuments returns documents newest first.
func (s *DocumentService) ListDocuments(ctx context.Context, limit, offset int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	return s.docsRepo.List(ctx, limit, offset)
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.docsRepo.Delete(ctx, id)
}

// BackfillEmbeddings enqueues embedding jobs for every chunk still missing an
// embedding. Returns the number of jobs scheduled.
func (s *DocumentService) BackfillEmbeddings(ctx context.Context) (int, error) {
	chunkIDs, err := s.docsRepo.ListChunkIDsForBackfill(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chunks for backfill: %w", err)
	}

	return s.enqueueEmbeddings(ctx, chunkIDs), nil
}

func (s *DocumentService) enqueueEmbeddings(ctx context.Context, chunkIDs []uuid.UUID) int {
	scheduled := 0

	for _, chunkID := range chunkIDs {
		_, err := s.inserter.Insert(ctx, ChunkEmbeddingArgs{ChunkID: chunkID}, &river.InsertOpts{
			Queue:       EmbeddingsQueueName,
			MaxAttempts: s.maxAttempts,
		})
		if err != nil {
			s.logger.Error("failed to enqueue chunk embedding job", "chunk_id", chunkID, "error", err)

			continue
		}

		scheduled++
	}

	return scheduled
}
