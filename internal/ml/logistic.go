package ml

import (
	"math"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

// Score computes sigmoid(bias + Σ wᵢxᵢ) for a feature vector already aligned
// to schema order. The weight set must contain a coefficient for every schema
// name plus the bias; any drift fails with a SchemaMismatchError. Length
// mismatches are never silently truncated or padded — that would corrupt
// scores without any visible symptom.
func Score(vector []float64, weights models.ModelWeights, schema []string) (float64, error) {
	if len(vector) != len(schema) {
		return 0, apperrors.NewSchemaMismatchError(len(schema), len(vector))
	}

	// Weights carry schema names + bias, nothing else.
	if len(weights) != len(schema)+1 {
		return 0, apperrors.NewSchemaMismatchError(len(schema)+1, len(weights))
	}

	z, ok := weights[models.BiasKey]
	if !ok {
		return 0, apperrors.NewSchemaMissingWeightError(models.BiasKey)
	}

	for i, name := range schema {
		w, ok := weights[name]
		if !ok {
			return 0, apperrors.NewSchemaMissingWeightError(name)
		}

		z += w * vector[i]
	}

	return sigmoid(z), nil
}

// ScoreFeatures vectorizes a named feature map against schema and scores it.
func ScoreFeatures(features map[string]any, weights models.ModelWeights, schema []string) (float64, error) {
	vec, err := Vectorize(features, schema)
	if err != nil {
		return 0, err
	}

	return Score(vec, weights, schema)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// FitOptions controls gradient-descent training.
type FitOptions struct {
	LearningRate  float64
	L2Lambda      float64
	MaxIterations int
	// Epsilon stops early when the loss improvement per iteration falls below it.
	Epsilon float64
}

// FitResult is the outcome of one Fit call.
type FitResult struct {
	Weights    models.ModelWeights
	Loss       float64
	Iterations int
}

// Fit trains logistic-regression weights by batch gradient descent on
// log-loss with L2 regularization (bias excluded from the penalty).
// Vectors must all be aligned to schema order; labels[i] pairs with
// vectors[i]. Deterministic for fixed inputs: weights start at zero and the
// update order is the slice order.
func Fit(vectors [][]float64, labels []bool, schema []string, opts FitOptions) (FitResult, error) {
	n := len(vectors)
	d := len(schema)

	for _, v := range vectors {
		if len(v) != d {
			return FitResult{}, apperrors.NewSchemaMismatchError(d, len(v))
		}
	}

	if opts.Epsilon <= 0 {
		opts.Epsilon = 1e-9
	}

	w := make([]float64, d)
	bias := 0.0

	y := make([]float64, n)
	for i, label := range labels {
		if label {
			y[i] = 1
		}
	}

	prevLoss := math.Inf(1)
	loss := 0.0
	iters := 0

	gradW := make([]float64, d)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		iters = iter + 1

		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0
		loss = 0

		for i, x := range vectors {
			z := bias
			for j := range x {
				z += w[j] * x[j]
			}

			p := sigmoid(z)
			loss += logLoss(y[i], p)

			diff := p - y[i]
			gradB += diff
			for j := range x {
				gradW[j] += diff * x[j]
			}
		}

		loss /= float64(n)

		// L2 penalty on weights only.
		for j := range w {
			loss += opts.L2Lambda * w[j] * w[j] / (2 * float64(n))
		}

		bias -= opts.LearningRate * gradB / float64(n)
		for j := range w {
			grad := gradW[j]/float64(n) + opts.L2Lambda*w[j]/float64(n)
			w[j] -= opts.LearningRate * grad
		}

		if prevLoss-loss < opts.Epsilon {
			break
		}

		prevLoss = loss
	}

	weights := make(models.ModelWeights, d+1)
	weights[models.BiasKey] = bias
	for j, name := range schema {
		weights[name] = w[j]
	}

	return FitResult{Weights: weights, Loss: loss, Iterations: iters}, nil
}

// logLoss is the per-example negative log likelihood, clamped away from
// log(0).
func logLoss(y, p float64) float64 {
	const eps = 1e-12

	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// Evaluate computes log-loss, precision, and recall of weights on a holdout
// set, thresholding predictions at 0.5. Precision and recall are 0 when
// undefined (no positive predictions / no positive labels).
func Evaluate(vectors [][]float64, labels []bool, weights models.ModelWeights, schema []string) (loss, precision, recall float64, err error) {
	if len(vectors) == 0 {
		return 0, 0, 0, nil
	}

	var tp, fp, fn int

	for i, x := range vectors {
		p, scoreErr := Score(x, weights, schema)
		if scoreErr != nil {
			return 0, 0, 0, scoreErr
		}

		y := 0.0
		if labels[i] {
			y = 1
		}

		loss += logLoss(y, p)

		predicted := p >= 0.5
		switch {
		case predicted && labels[i]:
			tp++
		case predicted && !labels[i]:
			fp++
		case !predicted && labels[i]:
			fn++
		}
	}

	loss /= float64(len(vectors))

	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}

	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}

	return loss, precision, recall, nil
}
