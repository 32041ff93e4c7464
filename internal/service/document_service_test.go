package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

type mockDocsRepo struct {
	create       func(ctx context.Context, req *models.CreateDocumentRequest) (*models.Document, []uuid.UUID, error)
	getByID      func(ctx context.Context, id uuid.UUID) (*models.Document, error)
	list         func(ctx context.Context, limit, offset int) ([]models.Document, error)
	delete       func(ctx context.Context, id uuid.UUID) error
	listBackfill func(ctx context.Context) ([]uuid.UUID, error)
}

func (m *mockDocsRepo) Create(ctx context.Context, req *models.CreateDocumentRequest) (*models.Document, []uuid.UUID, error) {
	return m.create(ctx, req)
}

func (m *mockDocsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return m.getByID(ctx, id)
}

func (m *mockDocsRepo) List(ctx context.Context, limit, offset int) ([]models.Document, error) {
	return m.list(ctx, limit, offset)
}

func (m *mockDocsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

func (m *mockDocsRepo) ListChunkIDsForBackfill(ctx context.Context) ([]uuid.UUID, error) {
	return m.listBackfill(ctx)
}

type mockJobInserter struct {
	insert func(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

func (m *mockJobInserter) Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
	return m.insert(ctx, args, opts)
}

func TestDocumentService_Ingest(t *testing.T) {
	chunkIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	doc := &models.Document{ID: uuid.New(), Title: "Burgundy primer", Source: "grape-guide"}

	repo := &mockDocsRepo{
		create: func(_ context.Context, req *models.CreateDocumentRequest) (*models.Document, []uuid.UUID, error) {
			assert.Equal(t, "Burgundy primer", req.Title)

			return doc, chunkIDs, nil
		},
	}

	t.Run("enqueues one embedding job per chunk", func(t *testing.T) {
		var inserted []ChunkEmbeddingArgs

		inserter := &mockJobInserter{
			insert: func(_ context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
				require.Equal(t, EmbeddingsQueueName, opts.Queue)
				assert.Equal(t, 5, opts.MaxAttempts)
				inserted = append(inserted, args.(ChunkEmbeddingArgs))

				return &rivertype.JobInsertResult{}, nil
			},
		}

		svc := NewDocumentService(repo, inserter, 5, nil)

		resp, err := svc.Ingest(context.Background(), &models.CreateDocumentRequest{
			Title:  "Burgundy primer",
			Source: "grape-guide",
			Chunks: []string{"a", "b", "c"},
		})

		require.NoError(t, err)
		assert.Equal(t, doc, resp.Document)
		assert.Equal(t, 3, resp.ChunkCount)
		assert.Equal(t, 3, resp.JobsScheduled)
		require.Len(t, inserted, 3)
		assert.Equal(t, chunkIDs[0], inserted[0].ChunkID)
	})

	t.Run("a failed enqueue is counted out, not fatal", func(t *testing.T) {
		calls := 0

		inserter := &mockJobInserter{
			insert: func(context.Context, river.JobArgs, *river.InsertOpts) (*rivertype.JobInsertResult, error) {
				calls++
				if calls == 2 {
					return nil, errors.New("queue unavailable")
				}

				return &rivertype.JobInsertResult{}, nil
			},
		}

		svc := NewDocumentService(repo, inserter, 5, nil)

		resp, err := svc.Ingest(context.Background(), &models.CreateDocumentRequest{
			Title:  "Burgundy primer",
			Source: "grape-guide",
			Chunks: []string{"a", "b", "c"},
		})

		require.NoError(t, err)
		assert.Equal(t, 3, resp.ChunkCount)
		assert.Equal(t, 2, resp.JobsScheduled)
	})

	t.Run("create failure is returned", func(t *testing.T) {
		failRepo := &mockDocsRepo{
			create: func(context.Context, *models.CreateDocumentRequest) (*models.Document, []uuid.UUID, error) {
				return nil, nil, errors.New("db down")
			},
		}
		inserter := &mockJobInserter{
			insert: func(context.Context, river.JobArgs, *river.InsertOpts) (*rivertype.JobInsertResult, error) {
				t.Fatal("no jobs should be enqueued when create fails")

				return nil, nil
			},
		}

		svc := NewDocumentService(failRepo, inserter, 5, nil)

		_, err := svc.Ingest(context.Background(), &models.CreateDocumentRequest{
			Title:  "x",
			Source: "y",
			Chunks: []string{"a"},
		})

		require.Error(t, err)
	})
}

func TestDocumentService_BackfillEmbeddings(t *testing.T) {
	pending := []uuid.UUID{uuid.New(), uuid.New()}

	repo := &mockDocsRepo{
		listBackfill: func(context.Context) ([]uuid.UUID, error) {
			return pending, nil
		},
	}

	var inserted int

	inserter := &mockJobInserter{
		insert: func(_ context.Context, _ river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error) {
			assert.Equal(t, EmbeddingsQueueName, opts.Queue)
			inserted++

			return &rivertype.JobInsertResult{}, nil
		},
	}

	svc := NewDocumentService(repo, inserter, 5, nil)

	scheduled, err := svc.BackfillEmbeddings(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, scheduled)
	assert.Equal(t, 2, inserted)
}

func TestDocumentService_DeleteDocument(t *testing.T) {
	repo := &mockDocsRepo{
		delete: func(context.Context, uuid.UUID) error {
			return apperrors.NewNotFoundError("document", "document not found")
		},
	}

	svc := NewDocumentService(repo, &mockJobInserter{}, 5, nil)

	err := svc.DeleteDocument(context.Background(), uuid.New())

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
