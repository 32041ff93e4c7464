package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

// DocumentsRepository handles data access for documents and their chunks.
type DocumentsRepository struct {
	db DB
}

// NewDocumentsRepository creates a new documents repository.
func NewDocumentsRepository(db DB) *DocumentsRepository {
	return &DocumentsRepository{db: db}
}

// Create inserts a document and its chunks in one transaction. Chunks start
// with a NULL embedding; the embedding worker fills them in asynchronously.
// Returns the document and the IDs of the created chunks in seq order.
func (r *DocumentsRepository) Create(ctx context.Context, req *models.CreateDocumentRequest) (*models.Document, []uuid.UUID, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doc models.Document
	err = tx.QueryRow(ctx, `
		INSERT INTO documents (title, source)
		VALUES ($1, $2)
		RETURNING id, title, source, created_at`,
		req.Title, req.Source,
	).Scan(&doc.ID, &doc.Title, &doc.Source, &doc.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create document: %w", err)
	}

	chunkIDs := make([]uuid.UUID, 0, len(req.Chunks))
	for seq, content := range req.Chunks {
		var chunkID uuid.UUID
		err = tx.QueryRow(ctx, `
			INSERT INTO document_chunks (document_id, seq, content)
			VALUES ($1, $2, $3)
			RETURNING id`,
			doc.ID, seq, content,
		).Scan(&chunkID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create chunk %d: %w", seq, err)
		}

		chunkIDs = append(chunkIDs, chunkID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit document: %w", err)
	}

	return &doc, chunkIDs, nil
}

// GetByID retrieves a single document by ID.
func (r *DocumentsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.QueryRow(ctx, `
		SELECT id, title, source, created_at
		FROM documents
		WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Title, &doc.Source, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("document", "document not found")
		}

		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// List returns documents newest first.
func (r *DocumentsRepository) List(ctx context.Context, limit, offset int) ([]models.Document, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, source, created_at
		FROM documents
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document

	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Source, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// Delete removes a document. Its chunks go with it (ON DELETE CASCADE), so
// deleted content drops out of the retrieval candidate set immediately.
func (r *DocumentsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("document", "document not found")
	}

	return nil
}

// GetChunk retrieves a single chunk without its embedding.
func (r *DocumentsRepository) GetChunk(ctx context.Context, id uuid.UUID) (*models.DocumentChunk, error) {
	var chunk models.DocumentChunk
	err := r.db.QueryRow(ctx, `
		SELECT id, document_id, seq, content, created_at
		FROM document_chunks
		WHERE id = $1`,
		id,
	).Scan(&chunk.ID, &chunk.DocumentID, &chunk.Seq, &chunk.Content, &chunk.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("chunk", "document chunk not found")
		}

		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}

	return &chunk, nil
}

// SetEmbedding stores the embedding for a chunk. Uses halfvec storage
// (2 bytes per dimension); pgvector-go converts float32 to float16 when
// encoding.
func (r *DocumentsRepository) SetEmbedding(ctx context.Context, chunkID uuid.UUID, embedding []float32) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE document_chunks
		SET embedding = $2
		WHERE id = $1`,
		chunkID, pgvector.NewHalfVector(embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to set chunk embedding: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("chunk", "document chunk not found")
	}

	return nil
}

// ListChunkIDsForBackfill returns IDs of chunks that have no embedding yet,
// oldest first, so interrupted ingestions can be resumed.
func (r *DocumentsRepository) ListChunkIDsForBackfill(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM document_chunks
		WHERE embedding IS NULL
		ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for backfill: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backfill chunk ids: %w", err)
	}

	return ids, nil
}

// NearestChunks returns the topK chunks nearest to queryEmbedding by cosine
// distance (<=>); score = 1 - distance. Chunks without an embedding are
// excluded. minScore filters low-similarity rows; equal-score rows are
// ordered by chunk ID so results are stable across calls.
func (r *DocumentsRepository) NearestChunks(ctx context.Context, queryEmbedding []float32, topK int, minScore float64) ([]models.RetrievalResult, error) {
	vec := pgvector.NewHalfVector(queryEmbedding)

	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.document_id, d.source, c.content, (1 - (c.embedding <=> $1)) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL AND (1 - (c.embedding <=> $1)) >= $2
		ORDER BY c.embedding <=> $1, c.id
		LIMIT $3`,
		vec, minScore, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest chunks: %w", err)
	}
	defer rows.Close()

	var results []models.RetrievalResult

	for rows.Next() {
		var res models.RetrievalResult
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.Source, &res.Content, &res.Score); err != nil {
			return nil, fmt.Errorf("failed to scan retrieval result: %w", err)
		}

		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nearest chunks: %w", err)
	}

	return results, nil
}
