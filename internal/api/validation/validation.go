// Package validation provides request validation and custom validators.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vinoteca/sommelier/internal/api/response"
	"github.com/vinoteca/sommelier/internal/models"
)

// validate is a package-level singleton that is safe for concurrent read-only
// access (validate.Struct() is thread-safe). All registrations MUST happen in
// init() only, as RegisterValidation is NOT thread-safe. Do NOT modify this
// instance after init() completes.
var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("no_null_bytes", validateNoNullBytes); err != nil {
		slog.Error("Failed to register no_null_bytes validator", "error", err)
	}

	if err := validate.RegisterValidation("model_kind", validateModelKind); err != nil {
		slog.Error("Failed to register model_kind validator", "error", err)
	}

	if err := validate.RegisterValidation("json_object", validateJSONObject); err != nil {
		slog.Error("Failed to register json_object validator", "error", err)
	}
}

// ValidateStruct validates a struct using go-playground/validator.
// Returns validation errors formatted for RFC 7807 Problem Details.
func ValidateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// formatValidationErrors converts validator errors to a formatted error message
// that can be used in RFC 7807 Problem Details responses.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			messages = append(messages, formatFieldError(fieldError))
		}

		return fmt.Errorf("validation failed: %s", strings.Join(messages, "; "))
	}

	return err
}

// formatFieldError formats a single field validation error.
func formatFieldError(fieldError validator.FieldError) string {
	field := fieldError.Field()
	tag := fieldError.Tag()

	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fieldError.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fieldError.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fieldError.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fieldError.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fieldError.Param())
	case "url":
		return field + " must be a valid URL"
	case "uuid":
		return field + " must be a valid UUID"
	case "model_kind":
		return field + " must be one of: reranker, route, intent"
	case "json_object":
		return field + " must be a JSON object"
	case "no_null_bytes":
		return field + " must not contain NULL bytes"
	default:
		return field + " is invalid"
	}
}

// GetValidationErrorDetails extracts field-level error details from validation
// errors. Returns a slice of ErrorDetail for RFC 7807 Problem Details.
func GetValidationErrorDetails(err error) []response.ErrorDetail {
	var details []response.ErrorDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			details = append(details, response.ErrorDetail{
				Location: fieldError.Field(),
				Message:  formatFieldError(fieldError),
				Value:    fieldError.Value(),
			})
		}
	}

	return details
}

// RespondValidationError writes a validation error response with RFC 7807 Problem Details.
func RespondValidationError(w http.ResponseWriter, err error) {
	details := GetValidationErrorDetails(err)

	problem := response.ProblemDetails{
		Type:   "about:blank",
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: err.Error(),
		Errors: details,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusBadRequest)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		slog.Error("Failed to encode validation error response", "error", err)
	}
}

// validateModelKind checks that a field names a known scoring model kind.
// It validates both string and ModelKind types.
func validateModelKind(fl validator.FieldLevel) bool {
	field := fl.Field()

	if field.Type() == reflect.TypeFor[models.ModelKind]() {
		return models.IsValidModelKind(field.String())
	}

	if field.Kind() == reflect.String {
		return models.IsValidModelKind(field.String())
	}

	return false
}

// validateJSONObject checks that a json.RawMessage field holds a JSON object.
// Empty values are valid (handled by omitempty).
func validateJSONObject(fl validator.FieldLevel) bool {
	field := fl.Field()

	if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.Uint8 {
		return true
	}

	raw := field.Bytes()
	if len(raw) == 0 {
		return true
	}

	var obj map[string]any

	return json.Unmarshal(raw, &obj) == nil
}

// validateNoNullBytes checks that a string field does not contain NULL bytes.
// Handles both string and *string types.
func validateNoNullBytes(fl validator.FieldLevel) bool {
	field := fl.Field()

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true // nil pointer is valid (handled by omitempty)
		}

		field = field.Elem()
	}

	if field.Kind() != reflect.String {
		return true // Not a string, skip validation
	}

	return !strings.Contains(field.String(), "\x00")
}
