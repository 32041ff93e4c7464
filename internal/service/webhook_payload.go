package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/vinoteca/sommelier/internal/models"
)

// EventTypeTrainingCompleted is emitted after a TrainAll run, whatever the
// per-kind outcomes were.
const EventTypeTrainingCompleted = "training.completed"

// WebhookPayload is the Standard Webhooks body delivered to endpoints.
type WebhookPayload struct {
	ID        uuid.UUID             `json:"id"`
	Type      string                `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Data      TrainingCompletedData `json:"data"`
}

// TrainingCompletedData summarizes one TrainAll run.
type TrainingCompletedData struct {
	TrainedBy string                   `json:"trained_by"`
	Outcomes  []models.TrainingOutcome `json:"outcomes"`
}
