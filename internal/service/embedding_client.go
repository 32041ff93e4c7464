// Package service implements the matching, retrieval, scoring, and training
// business logic between the HTTP handlers and the repositories.
package service

import "context"

// EmbeddingClient generates embedding vectors for text.
// Implemented by provider-specific clients (e.g. OpenAI).
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}
