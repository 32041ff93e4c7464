package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		shouldSet    bool
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			shouldSet:    true,
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "TEST_VAR_MISSING",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    false,
			want:         "default",
		},
		{
			name:         "returns default when environment variable is empty string",
			key:          "TEST_VAR_EMPTY",
			defaultValue: "default",
			envValue:     "",
			shouldSet:    true,
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.shouldSet {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsFloat(t *testing.T) {
	t.Run("parses float value", func(t *testing.T) {
		t.Setenv("TEST_FLOAT", "0.85")
		assert.InDelta(t, 0.85, getEnvAsFloat("TEST_FLOAT", 0.5), 1e-9)
	})

	t.Run("returns default on garbage", func(t *testing.T) {
		t.Setenv("TEST_FLOAT_BAD", "not-a-number")
		assert.InDelta(t, 0.5, getEnvAsFloat("TEST_FLOAT_BAD", 0.5), 1e-9)
	})

	t.Run("returns default when unset", func(t *testing.T) {
		assert.InDelta(t, 0.5, getEnvAsFloat("TEST_FLOAT_UNSET", 0.5), 1e-9)
	})
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.InDelta(t, 0.92, cfg.MatchExactThreshold, 1e-9)
	assert.InDelta(t, 0.70, cfg.MatchLikelyThreshold, 1e-9)
	assert.Equal(t, 10, cfg.TrainMinExamples)
	assert.Equal(t, 8, cfg.RetrievalTopK)

	// Weights renormalize to sum 1.
	total := cfg.MatchProducerWeight + cfg.MatchWineNameWeight + cfg.MatchVintageWeight + cfg.MatchABVWeight
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestLoad_RejectsInvertedThresholds(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("MATCH_EXACT_THRESHOLD", "0.5")
	t.Setenv("MATCH_LIKELY_THRESHOLD", "0.7")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MATCH_EXACT_THRESHOLD")
}

func TestLoad_RejectsBadHoldout(t *testing.T) {
	t.Setenv("API_KEY", "test-key")
	t.Setenv("TRAIN_HOLDOUT_FRACTION", "1.0")

	_, err := Load()
	require.Error(t, err)
}
