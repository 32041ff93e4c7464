package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

func testWeights() (models.ModelWeights, []string) {
	schema := []string{"x1", "x2"}
	weights := models.ModelWeights{
		models.BiasKey: -0.5,
		"x1":           2.0,
		"x2":           -1.0,
	}
	return weights, schema
}

func TestScore(t *testing.T) {
	weights, schema := testWeights()

	t.Run("produces probability in (0,1)", func(t *testing.T) {
		p, err := Score([]float64{0.3, 0.7}, weights, schema)
		require.NoError(t, err)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
	})

	t.Run("monotone in a positive-weight feature", func(t *testing.T) {
		prev := -1.0
		for _, x1 := range []float64{0, 0.25, 0.5, 0.75, 1} {
			p, err := Score([]float64{x1, 0.4}, weights, schema)
			require.NoError(t, err)
			assert.Greater(t, p, prev)
			prev = p
		}
	})

	t.Run("length mismatch is a hard error", func(t *testing.T) {
		_, err := Score([]float64{0.3}, weights, schema)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)

		var mismatch *apperrors.SchemaMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 2, mismatch.Expected)
		assert.Equal(t, 1, mismatch.Actual)
	})

	t.Run("weight set with extra entries is rejected", func(t *testing.T) {
		bloated := models.ModelWeights{
			models.BiasKey: 0, "x1": 1, "x2": 1, "stale_feature": 1,
		}
		_, err := Score([]float64{0, 0}, bloated, schema)
		assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)
	})

	t.Run("missing bias is rejected", func(t *testing.T) {
		noBias := models.ModelWeights{"x1": 1, "x2": 1, "x3": 1}
		_, err := Score([]float64{0, 0}, noBias, schema)
		assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)
	})
}

func TestScoreFeatures(t *testing.T) {
	weights, schema := testWeights()

	p, err := ScoreFeatures(map[string]any{"x1": 1.0}, weights, schema)
	require.NoError(t, err)

	// x2 defaults to 0: sigmoid(-0.5 + 2*1) = sigmoid(1.5)
	direct, err := Score([]float64{1, 0}, weights, schema)
	require.NoError(t, err)
	assert.InDelta(t, direct, p, 1e-12)
}

func TestFit(t *testing.T) {
	opts := FitOptions{LearningRate: 0.5, L2Lambda: 0.01, MaxIterations: 500}

	t.Run("learns a separable pattern", func(t *testing.T) {
		schema := []string{"signal"}

		var vectors [][]float64
		var labels []bool
		for i := 0; i < 20; i++ {
			if i%2 == 0 {
				vectors = append(vectors, []float64{1})
				labels = append(labels, true)
			} else {
				vectors = append(vectors, []float64{0})
				labels = append(labels, false)
			}
		}

		res, err := Fit(vectors, labels, schema, opts)
		require.NoError(t, err)

		pHigh, err := Score([]float64{1}, res.Weights, schema)
		require.NoError(t, err)
		pLow, err := Score([]float64{0}, res.Weights, schema)
		require.NoError(t, err)

		assert.Greater(t, pHigh, 0.7)
		assert.Less(t, pLow, 0.3)
		assert.Positive(t, res.Iterations)
	})

	t.Run("deterministic for fixed inputs", func(t *testing.T) {
		schema := []string{"a", "b"}
		vectors := [][]float64{{1, 0}, {0, 1}, {1, 1}, {0, 0}}
		labels := []bool{true, false, true, false}

		r1, err := Fit(vectors, labels, schema, opts)
		require.NoError(t, err)
		r2, err := Fit(vectors, labels, schema, opts)
		require.NoError(t, err)

		assert.Equal(t, r1.Weights, r2.Weights)
		assert.Equal(t, r1.Iterations, r2.Iterations)
	})

	t.Run("rejects misaligned vectors", func(t *testing.T) {
		_, err := Fit([][]float64{{1, 2, 3}}, []bool{true}, []string{"a", "b"}, opts)
		assert.ErrorIs(t, err, apperrors.ErrSchemaMismatch)
	})

	t.Run("weight map covers schema plus bias", func(t *testing.T) {
		schema := []string{"a", "b"}
		res, err := Fit([][]float64{{1, 0}, {0, 1}}, []bool{true, false}, schema, opts)
		require.NoError(t, err)
		assert.Len(t, res.Weights, 3)
		assert.Contains(t, res.Weights, models.BiasKey)
	})
}

func TestEvaluate(t *testing.T) {
	schema := []string{"signal"}
	weights := models.ModelWeights{models.BiasKey: -2, "signal": 4}

	t.Run("perfect separation gives precision and recall 1", func(t *testing.T) {
		vectors := [][]float64{{1}, {1}, {0}, {0}}
		labels := []bool{true, true, false, false}

		loss, precision, recall, err := Evaluate(vectors, labels, weights, schema)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, precision, 1e-9)
		assert.InDelta(t, 1.0, recall, 1e-9)
		assert.Greater(t, loss, 0.0)
	})

	t.Run("empty holdout is zero-valued, not an error", func(t *testing.T) {
		loss, precision, recall, err := Evaluate(nil, nil, weights, schema)
		require.NoError(t, err)
		assert.Zero(t, loss)
		assert.Zero(t, precision)
		assert.Zero(t, recall)
	})

	t.Run("no positive predictions leaves precision zero", func(t *testing.T) {
		negWeights := models.ModelWeights{models.BiasKey: -5, "signal": 0}
		_, precision, recall, err := Evaluate([][]float64{{1}}, []bool{true}, negWeights, schema)
		require.NoError(t, err)
		assert.Zero(t, precision)
		assert.Zero(t, recall)
	})
}
