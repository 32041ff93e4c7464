package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ModelKind identifies one of the three linear scoring models.
type ModelKind string

const (
	// ModelKindReranker reorders retrieved passages.
	ModelKindReranker ModelKind = "reranker"
	// ModelKindRoute picks an answer-generation strategy.
	ModelKindRoute ModelKind = "route"
	// ModelKindIntent detects specific-wine-lookup questions.
	ModelKindIntent ModelKind = "intent"
)

// ModelKinds lists all model kinds in training order.
var ModelKinds = []ModelKind{ModelKindReranker, ModelKindRoute, ModelKindIntent}

// IsValidModelKind reports whether s names a known model kind.
func IsValidModelKind(s string) bool {
	switch ModelKind(s) {
	case ModelKindReranker, ModelKindRoute, ModelKindIntent:
		return true
	}
	return false
}

// BiasKey is the reserved weight name for the model intercept.
// It must never appear in a feature schema.
const BiasKey = "bias"

// ModelWeights maps feature names (plus BiasKey) to coefficients.
// Immutable once persisted; retraining produces a new version.
type ModelWeights map[string]float64

// FeatureSchema is the ordered feature-name list a weight set was trained
// against. Weights are meaningless against any other schema version.
type FeatureSchema struct {
	ID           uuid.UUID `json:"id"`
	Kind         ModelKind `json:"kind"`
	Version      int       `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	CreatedAt    time.Time `json:"created_at"`
}

// TrainingExample is one append-only labeled example built from user feedback
// or a moderation decision.
type TrainingExample struct {
	ID        uuid.UUID       `json:"id"`
	Kind      ModelKind       `json:"kind"`
	Features  map[string]any  `json:"features"`
	Label     bool            `json:"label"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// CreateTrainingExampleRequest records one feedback event as a training example.
type CreateTrainingExampleRequest struct {
	Kind      string          `json:"kind" validate:"required,model_kind"`
	Features  map[string]any  `json:"features" validate:"required,min=1"`
	Label     bool            `json:"label"`
	Metadata  json.RawMessage `json:"metadata,omitempty" validate:"omitempty,json_object"`
	CreatedBy string          `json:"created_by" validate:"required,min=1,max=255,no_null_bytes"`
}

// TrainingMetrics holds holdout metrics stored with a model version.
// Descriptive only; they never gate activation.
type TrainingMetrics struct {
	Loss         float64 `json:"loss"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	TrainCount   int     `json:"train_count"`
	HoldoutCount int     `json:"holdout_count"`
	Iterations   int     `json:"iterations"`
}

// ModelVersion is one immutable trained model. At most one version per kind
// is active at any time.
type ModelVersion struct {
	ID            uuid.UUID       `json:"id"`
	Kind          ModelKind       `json:"kind"`
	Weights       ModelWeights    `json:"weights"`
	Metrics       TrainingMetrics `json:"metrics"`
	FeatureCount  int             `json:"feature_count"`
	SchemaVersion int             `json:"schema_version"`
	Active        bool            `json:"active"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TrainingOutcome is the per-kind result of a TrainAll run. Exactly one of
// VersionID or Error is meaningful; partial success across kinds is a valid
// terminal state.
type TrainingOutcome struct {
	Kind      ModelKind        `json:"kind"`
	VersionID *uuid.UUID       `json:"version_id,omitempty"`
	Metrics   *TrainingMetrics `json:"metrics,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// RouteKind identifies an answer-generation strategy.
type RouteKind string

const (
	// RouteRAG answers from retrieved document passages.
	RouteRAG RouteKind = "rag"
	// RouteCellar answers via a specific-wine catalog lookup.
	RouteCellar RouteKind = "cellar"
	// RouteDirect answers without retrieval.
	RouteDirect RouteKind = "direct"
)

// RoutePriority is the fixed tie-break order when route scores are equal:
// earlier entries win.
var RoutePriority = []RouteKind{RouteRAG, RouteCellar, RouteDirect}
