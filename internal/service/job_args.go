package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/vinoteca/sommelier/internal/models"
)

const (
	chunkEmbeddingKind = "chunk_embedding"
	// EmbeddingsQueueName is the River queue used for chunk embedding jobs.
	EmbeddingsQueueName = "embeddings"

	webhookDispatchKind = "webhook_dispatch"
	// WebhooksQueueName is the River queue used for webhook deliveries.
	WebhooksQueueName = "webhooks"
)

// JobInserter inserts background jobs (e.g. River client).
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ChunkEmbeddingArgs is the job payload for embedding one document chunk.
// Uniqueness is by ChunkID so re-enqueueing (ingest retry, backfill) does not
// create duplicate jobs.
type ChunkEmbeddingArgs struct {
	ChunkID uuid.UUID `json:"chunk_id" river:"unique"`
}

// Kind returns the River job kind.
func (ChunkEmbeddingArgs) Kind() string { return chunkEmbeddingKind }

var _ river.JobArgs = ChunkEmbeddingArgs{}

// WebhookDispatchArgs is the job payload for one (event, webhook) delivery.
// Only event_id and webhook_id carry River uniqueness so the hash stays fast
// and excludes the payload body.
type WebhookDispatchArgs struct {
	EventID   uuid.UUID                `json:"event_id"   river:"unique"`
	EventType string                   `json:"event_type"`
	Timestamp time.Time                `json:"timestamp"`
	TrainedBy string                   `json:"trained_by"`
	Outcomes  []models.TrainingOutcome `json:"outcomes"`
	WebhookID uuid.UUID                `json:"webhook_id" river:"unique"`
}

// Kind returns the River job kind.
func (WebhookDispatchArgs) Kind() string { return webhookDispatchKind }

var _ river.JobArgs = WebhookDispatchArgs{}
