package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

type mockWinesRepo struct {
	findFunc func(ctx context.Context, producerNorm, nameNorm string, limit int) ([]models.WineRecord, error)
}

func (m *mockWinesRepo) FindCandidates(ctx context.Context, producerNorm, nameNorm string, limit int) ([]models.WineRecord, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, producerNorm, nameNorm, limit)
	}

	return nil, nil
}

func intPtr(v int) *int { return &v }

func newTestMatchService(repo WinesRepositoryForMatch) *MatchService {
	return NewMatchService(MatchServiceParams{
		WinesRepo:     repo,
		Weights:       MatchWeights{Producer: 0.35, WineName: 0.40, Vintage: 0.15, Alcohol: 0.10},
		Thresholds:    MatchThresholds{Exact: 0.92, Likely: 0.70},
		MaxCandidates: 5,
		BlockingLimit: 50,
	})
}

func catalogWine(producer, name string, vintage int) models.WineRecord {
	return models.WineRecord{
		ID:           uuid.New(),
		Producer:     producer,
		WineName:     name,
		Vintage:      intPtr(vintage),
		ProducerNorm: producer, // tests pass pre-normalized strings
		WineNameNorm: name,
	}
}

func TestMatchService_MatchWine(t *testing.T) {
	t.Run("identical attributes give an exact match", func(t *testing.T) {
		wine := catalogWine("domaine x", "cuvee a", 2018)
		svc := newTestMatchService(&mockWinesRepo{
			findFunc: func(_ context.Context, _, _ string, _ int) ([]models.WineRecord, error) {
				return []models.WineRecord{wine}, nil
			},
		})

		result, err := svc.MatchWine(context.Background(), models.MatchQuery{
			Producer: "Domaine X", WineName: "Cuvée A", Vintage: intPtr(2018),
		})
		require.NoError(t, err)

		assert.Equal(t, models.MatchStatusExact, result.Status)
		assert.GreaterOrEqual(t, result.Score, 0.92)
		require.NotNil(t, result.WineID)
		assert.Equal(t, wine.ID, *result.WineID)
		assert.Len(t, result.Candidates, 1)
	})

	t.Run("unrelated strings give no match", func(t *testing.T) {
		svc := newTestMatchService(&mockWinesRepo{
			findFunc: func(_ context.Context, _, _ string, _ int) ([]models.WineRecord, error) {
				return []models.WineRecord{catalogWine("zzqqxx vineyards", "blorpt fizz", 1999)}, nil
			},
		})

		result, err := svc.MatchWine(context.Background(), models.MatchQuery{
			Producer: "chateau margaux", WineName: "grand vin",
		})
		require.NoError(t, err)

		assert.Equal(t, models.MatchStatusNone, result.Status)
		assert.Nil(t, result.WineID)
		assert.Empty(t, result.Candidates)
	})

	t.Run("near match lands in the likely band with ordered candidates", func(t *testing.T) {
		close1 := catalogWine("domaine x", "cuvee a", 2017)
		close2 := catalogWine("domaine x", "cuvee b", 2018)
		svc := newTestMatchService(&mockWinesRepo{
			findFunc: func(_ context.Context, _, _ string, _ int) ([]models.WineRecord, error) {
				return []models.WineRecord{close2, close1}, nil
			},
		})

		result, err := svc.MatchWine(context.Background(), models.MatchQuery{
			Producer: "domaine x", WineName: "cuvee a", Vintage: intPtr(2018),
		})
		require.NoError(t, err)

		assert.Equal(t, models.MatchStatusLikely, result.Status)
		require.NotEmpty(t, result.Candidates)
		for i := 1; i < len(result.Candidates); i++ {
			assert.GreaterOrEqual(t, result.Candidates[i-1].TotalScore, result.Candidates[i].TotalScore)
		}
	})

	t.Run("no text signal skips the catalog entirely", func(t *testing.T) {
		called := false
		svc := newTestMatchService(&mockWinesRepo{
			findFunc: func(_ context.Context, _, _ string, _ int) ([]models.WineRecord, error) {
				called = true

				return nil, nil
			},
		})

		result, err := svc.MatchWine(context.Background(), models.MatchQuery{Vintage: intPtr(2018)})
		require.NoError(t, err)

		assert.Equal(t, models.MatchStatusNone, result.Status)
		assert.False(t, called)
	})

	t.Run("a single identity field is insufficient signal", func(t *testing.T) {
		// Even a character-perfect wine name must not classify on its own;
		// one field carrying the whole score is how partial OCR extractions
		// would get reported as EXACT.
		queries := map[string]models.MatchQuery{
			"name only":     {WineName: "Cuvée A"},
			"producer only": {Producer: "Domaine X"},
		}

		for label, query := range queries {
			t.Run(label, func(t *testing.T) {
				called := false
				svc := newTestMatchService(&mockWinesRepo{
					findFunc: func(_ context.Context, _, _ string, _ int) ([]models.WineRecord, error) {
						called = true

						return []models.WineRecord{catalogWine("domaine x", "cuvee a", 2018)}, nil
					},
				})

				result, err := svc.MatchWine(context.Background(), query)
				require.NoError(t, err)

				assert.Equal(t, models.MatchStatusNone, result.Status)
				assert.Empty(t, result.Candidates)
				assert.False(t, called, "blocking query must be skipped")
			})
		}
	})

	t.Run("catalog failure degrades to manual entry, never fabricates", func(t *testing.T) {
		svc := newTestMatchService(&mockWinesRepo{
			findFunc: func(_ context.Context, _, _ string, _ int) ([]models.WineRecord, error) {
				return nil, errors.New("connection refused")
			},
		})

		result, err := svc.MatchWine(context.Background(), models.MatchQuery{Producer: "domaine x", WineName: "cuvee a"})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrMatcherUnavailable)

		require.NotNil(t, result)
		assert.Equal(t, models.MatchStatusNone, result.Status)
		assert.True(t, result.NeedsManualEntry)
	})

	t.Run("diacritics and case do not break matching", func(t *testing.T) {
		wine := catalogWine("chateau margaux", "grand vin", 2015)
		svc := newTestMatchService(&mockWinesRepo{
			findFunc: func(_ context.Context, _, _ string, _ int) ([]models.WineRecord, error) {
				return []models.WineRecord{wine}, nil
			},
		})

		result, err := svc.MatchWine(context.Background(), models.MatchQuery{
			Producer: "CHÂTEAU MARGAUX", WineName: "Grand Vin", Vintage: intPtr(2015),
		})
		require.NoError(t, err)
		assert.Equal(t, models.MatchStatusExact, result.Status)
	})
}

func TestVintageScore(t *testing.T) {
	assert.Equal(t, 1.0, vintageScore(2018, 2018))
	assert.Equal(t, 0.5, vintageScore(2018, 2017))
	assert.Equal(t, 0.5, vintageScore(2017, 2018))
	assert.Equal(t, 0.0, vintageScore(2018, 2015))
}

func TestAlcoholScore(t *testing.T) {
	assert.Equal(t, 1.0, alcoholScore(13.5, 13.5))
	assert.Equal(t, 1.0, alcoholScore(13.5, 13.6))
	assert.Equal(t, 0.5, alcoholScore(13.5, 13.8))
	assert.Equal(t, 0.0, alcoholScore(13.5, 14.5))
}
