package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is an ingested reference document (e.g. a grape guide or producer notes).
type Document struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentChunk is one retrievable passage of a document. Embedding is nil
// until the embedding worker has processed the chunk; unembedded chunks are
// never part of the search candidate set.
type DocumentChunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Seq        int       `json:"seq"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateDocumentRequest ingests a document as pre-split chunks.
type CreateDocumentRequest struct {
	Title  string   `json:"title" validate:"required,min=1,max=512,no_null_bytes"`
	Source string   `json:"source" validate:"required,min=1,max=512,no_null_bytes"`
	Chunks []string `json:"chunks" validate:"required,min=1,max=500,dive,required,max=8192"`
}

// RetrievalResult is one retrieved passage with its similarity score in [0,1].
type RetrievalResult struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"`
}
