// Package apperrors provides sentinel and custom error types for the application.
package apperrors

import (
	"fmt"
)

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrFeatureEncoding is the sentinel for malformed feature values.
var ErrFeatureEncoding = &FeatureEncodingError{}

// FeatureEncodingError reports a feature value that cannot be coerced to a number.
// Key names the offending feature so a data bug can be traced to its source.
type FeatureEncodingError struct {
	Key   string
	Value any
}

// NewFeatureEncodingError creates a FeatureEncodingError for the given key and value.
func NewFeatureEncodingError(key string, value any) *FeatureEncodingError {
	return &FeatureEncodingError{Key: key, Value: value}
}

// Error implements the error interface.
func (e *FeatureEncodingError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("feature %q has non-numeric value of type %T", e.Key, e.Value)
	}

	return "feature encoding error"
}

// Is implements the error interface for error comparison.
func (e *FeatureEncodingError) Is(target error) bool {
	_, ok := target.(*FeatureEncodingError)

	return ok
}

// ErrSchemaMismatch is the sentinel for feature schema drift between a vector and a weight set.
var ErrSchemaMismatch = &SchemaMismatchError{}

// SchemaMismatchError reports a feature vector that does not line up with model weights.
// Scoring with mismatched schemas silently corrupts scores, so this is always fatal.
type SchemaMismatchError struct {
	Expected int
	Actual   int
	Missing  string
}

// NewSchemaMismatchError creates a SchemaMismatchError with expected and actual feature counts.
func NewSchemaMismatchError(expected, actual int) *SchemaMismatchError {
	return &SchemaMismatchError{Expected: expected, Actual: actual}
}

// NewSchemaMissingWeightError creates a SchemaMismatchError naming a schema feature with no weight.
func NewSchemaMissingWeightError(name string) *SchemaMismatchError {
	return &SchemaMismatchError{Missing: name}
}

// Error implements the error interface.
func (e *SchemaMismatchError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("schema mismatch: no weight for feature %q", e.Missing)
	}

	return fmt.Sprintf("schema mismatch: expected %d features, got %d", e.Expected, e.Actual)
}

// Is implements the error interface for error comparison.
func (e *SchemaMismatchError) Is(target error) bool {
	_, ok := target.(*SchemaMismatchError)

	return ok
}

// ErrInsufficientData is the sentinel for training sets below the minimum size.
var ErrInsufficientData = &InsufficientDataError{}

// InsufficientDataError reports a training run aborted for lack of examples.
// It affects only the model kind being trained; other kinds are unaffected.
type InsufficientDataError struct {
	Kind string
	Have int
	Min  int
}

// NewInsufficientDataError creates an InsufficientDataError for the given model kind.
func NewInsufficientDataError(kind string, have, minimum int) *InsufficientDataError {
	return &InsufficientDataError{Kind: kind, Have: have, Min: minimum}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("insufficient training data for %s: have %d examples, need %d", e.Kind, e.Have, e.Min)
	}

	return "insufficient training data"
}

// Is implements the error interface for error comparison.
func (e *InsufficientDataError) Is(target error) bool {
	_, ok := target.(*InsufficientDataError)

	return ok
}

// ErrMatcherUnavailable is the sentinel for wine catalog lookup failures.
// Callers fall back to NO_MATCH plus a manual-entry flag, never a fabricated match.
var ErrMatcherUnavailable = &MatcherUnavailableError{}

// MatcherUnavailableError wraps a catalog error that prevented fuzzy matching.
type MatcherUnavailableError struct {
	Err error
}

// NewMatcherUnavailableError wraps err as a MatcherUnavailableError.
func NewMatcherUnavailableError(err error) *MatcherUnavailableError {
	return &MatcherUnavailableError{Err: err}
}

// Error implements the error interface.
func (e *MatcherUnavailableError) Error() string {
	if e.Err != nil {
		return "wine catalog unavailable: " + e.Err.Error()
	}

	return "wine catalog unavailable"
}

// Unwrap returns the underlying catalog error.
func (e *MatcherUnavailableError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *MatcherUnavailableError) Is(target error) bool {
	_, ok := target.(*MatcherUnavailableError)

	return ok
}

// ErrRetrievalUnavailable is the sentinel for embedding or nearest-neighbor failures.
// Callers fall back to a non-retrieval answer path.
var ErrRetrievalUnavailable = &RetrievalUnavailableError{}

// RetrievalUnavailableError wraps an embedding-provider or chunk-store error.
type RetrievalUnavailableError struct {
	Err error
}

// NewRetrievalUnavailableError wraps err as a RetrievalUnavailableError.
func NewRetrievalUnavailableError(err error) *RetrievalUnavailableError {
	return &RetrievalUnavailableError{Err: err}
}

// Error implements the error interface.
func (e *RetrievalUnavailableError) Error() string {
	if e.Err != nil {
		return "retrieval unavailable: " + e.Err.Error()
	}

	return "retrieval unavailable"
}

// Unwrap returns the underlying error.
func (e *RetrievalUnavailableError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *RetrievalUnavailableError) Is(target error) bool {
	_, ok := target.(*RetrievalUnavailableError)

	return ok
}
