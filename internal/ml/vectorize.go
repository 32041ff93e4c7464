// Package ml implements the feature vectorizer and the shared linear model
// used by the reranker, route, and intent classifiers.
package ml

import (
	"encoding/json"

	"github.com/vinoteca/sommelier/internal/apperrors"
)

// Vectorize maps a named feature map onto the fixed order given by schema.
// Booleans become 1/0, nil and missing entries become 0, numeric kinds are
// coerced to float64. Output length always equals len(schema); entries are
// never reordered or dropped. A value that cannot be coerced fails with a
// FeatureEncodingError naming the offending key.
func Vectorize(features map[string]any, schema []string) ([]float64, error) {
	vec := make([]float64, len(schema))

	for i, name := range schema {
		raw, ok := features[name]
		if !ok || raw == nil {
			continue // default 0
		}

		v, err := coerce(name, raw)
		if err != nil {
			return nil, err
		}

		vec[i] = v
	}

	return vec, nil
}

// coerce converts one feature value to float64.
func coerce(key string, raw any) (float64, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		// Training examples round-trip through JSONB; accept numbers decoded
		// with UseNumber as well as plain float64.
		f, err := v.Float64()
		if err != nil {
			return 0, apperrors.NewFeatureEncodingError(key, raw)
		}
		return f, nil
	default:
		return 0, apperrors.NewFeatureEncodingError(key, raw)
	}
}
