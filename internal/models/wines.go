// Package models defines the data structures shared by repositories, services, and handlers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// WineRecord is one catalog entry. The *_norm columns hold the normalized
// (case-folded, diacritic-stripped) forms used for trigram blocking.
type WineRecord struct {
	ID             uuid.UUID `json:"id"`
	Producer       string    `json:"producer"`
	WineName       string    `json:"wine_name"`
	Vintage        *int      `json:"vintage,omitempty"`
	AlcoholPercent *float64  `json:"alcohol_percent,omitempty"`
	Region         *string   `json:"region,omitempty"`
	Country        *string   `json:"country,omitempty"`
	ProducerNorm   string    `json:"-"`
	WineNameNorm   string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateWineRequest represents the request to add a wine to the catalog
// (e.g. the manual-entry path after a NO_MATCH).
type CreateWineRequest struct {
	Producer       string   `json:"producer" validate:"required,min=1,max=255,no_null_bytes"`
	WineName       string   `json:"wine_name" validate:"required,min=1,max=255,no_null_bytes"`
	Vintage        *int     `json:"vintage,omitempty" validate:"omitempty,min=1800,max=2100"`
	AlcoholPercent *float64 `json:"alcohol_percent,omitempty" validate:"omitempty,min=0,max=30"`
	Region         *string  `json:"region,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Country        *string  `json:"country,omitempty" validate:"omitempty,max=255,no_null_bytes"`
}

// MatchQuery carries the partial, possibly noisy wine attributes extracted
// from a CSV import row or an OCR'd label.
type MatchQuery struct {
	Producer       string   `json:"producer,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	WineName       string   `json:"wine_name,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	Vintage        *int     `json:"vintage,omitempty" validate:"omitempty,min=1800,max=2100"`
	AlcoholPercent *float64 `json:"alcohol_percent,omitempty" validate:"omitempty,min=0,max=30"`
}

// MatchStatus classifies a match result.
type MatchStatus string

const (
	// MatchStatusExact means the top candidate cleared the exact threshold.
	MatchStatusExact MatchStatus = "EXACT_MATCH"
	// MatchStatusLikely means the top candidate is in the likely band; candidates need review.
	MatchStatusLikely MatchStatus = "LIKELY_MATCH"
	// MatchStatusNone means no candidate cleared the likely threshold.
	MatchStatusNone MatchStatus = "NO_MATCH"
)

// WineCandidate is one scored catalog candidate, transient per match call.
type WineCandidate struct {
	WineID     uuid.UUID `json:"wine_id"`
	Producer   string    `json:"producer"`
	WineName   string    `json:"wine_name"`
	Vintage    *int      `json:"vintage,omitempty"`
	TotalScore float64   `json:"total_score"`
}

// MatchResult is the outcome of one fuzzy match call. Candidates are ordered
// by non-increasing TotalScore. WineID is set only for EXACT_MATCH.
// NeedsManualEntry is set when the catalog was unreachable and the caller
// should offer manual wine creation instead of trusting NO_MATCH.
type MatchResult struct {
	Status           MatchStatus     `json:"status"`
	Score            float64         `json:"score"`
	WineID           *uuid.UUID      `json:"wine_id,omitempty"`
	Candidates       []WineCandidate `json:"candidates"`
	NeedsManualEntry bool            `json:"needs_manual_entry,omitempty"`
}
