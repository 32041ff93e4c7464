package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

type mockModelsService struct {
	trainFunc    func(ctx context.Context, kind models.ModelKind, trainedBy string) (*models.ModelVersion, error)
	trainAllFunc func(ctx context.Context, trainedBy string) []models.TrainingOutcome
	activateFunc func(ctx context.Context, kind models.ModelKind, id uuid.UUID) (*models.ModelVersion, error)
}

func (m *mockModelsService) Train(ctx context.Context, kind models.ModelKind, trainedBy string) (*models.ModelVersion, error) {
	if m.trainFunc != nil {
		return m.trainFunc(ctx, kind, trainedBy)
	}

	return &models.ModelVersion{ID: uuid.New(), Kind: kind, CreatedBy: trainedBy}, nil
}

func (m *mockModelsService) TrainAll(ctx context.Context, trainedBy string) []models.TrainingOutcome {
	if m.trainAllFunc != nil {
		return m.trainAllFunc(ctx, trainedBy)
	}

	return []models.TrainingOutcome{}
}

func (m *mockModelsService) Activate(ctx context.Context, kind models.ModelKind, id uuid.UUID) (*models.ModelVersion, error) {
	if m.activateFunc != nil {
		return m.activateFunc(ctx, kind, id)
	}

	return &models.ModelVersion{ID: id, Kind: kind, Active: true}, nil
}

func (m *mockModelsService) GetActive(_ context.Context, kind models.ModelKind) (*models.ModelVersion, error) {
	return nil, apperrors.NewNotFoundError("model_version", "no active model version for kind "+string(kind))
}

func (m *mockModelsService) ListVersions(context.Context, models.ModelKind, int) ([]models.ModelVersion, error) {
	return []models.ModelVersion{}, nil
}

func TestModelsHandler_Train(t *testing.T) {
	t.Run("unknown kind returns 400", func(t *testing.T) {
		handler := NewModelsHandler(&mockModelsService{})
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/models/foo/train", nil)
		req.SetPathValue("kind", "foo")
		rec := httptest.NewRecorder()

		handler.Train(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too few examples returns 422", func(t *testing.T) {
		mock := &mockModelsService{
			trainFunc: func(_ context.Context, kind models.ModelKind, _ string) (*models.ModelVersion, error) {
				return nil, apperrors.NewInsufficientDataError(string(kind), 3, 10)
			},
		}
		handler := NewModelsHandler(mock)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/models/reranker/train", nil)
		req.SetPathValue("kind", "reranker")
		rec := httptest.NewRecorder()

		handler.Train(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("success returns 201 with the new version", func(t *testing.T) {
		handler := NewModelsHandler(&mockModelsService{})
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/models/route/train", nil)
		req.SetPathValue("kind", "route")
		rec := httptest.NewRecorder()

		handler.Train(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		var version models.ModelVersion

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
		assert.Equal(t, models.ModelKindRoute, version.Kind)
		assert.Equal(t, "api", version.CreatedBy)
		assert.False(t, version.Active)
	})
}

func TestModelsHandler_TrainAll(t *testing.T) {
	t.Run("partial failure still returns 200 with outcomes", func(t *testing.T) {
		versionID := uuid.New()
		mock := &mockModelsService{
			trainAllFunc: func(_ context.Context, trainedBy string) []models.TrainingOutcome {
				assert.Equal(t, "api", trainedBy)

				return []models.TrainingOutcome{
					{Kind: models.ModelKindReranker, VersionID: &versionID},
					{Kind: models.ModelKindRoute, Error: "insufficient training data"},
					{Kind: models.ModelKindIntent, VersionID: &versionID},
				}
			},
		}
		handler := NewModelsHandler(mock)
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/models/train", nil)
		rec := httptest.NewRecorder()

		handler.TrainAll(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Outcomes []models.TrainingOutcome `json:"outcomes"`
		}

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Outcomes, 3)
		assert.NotEmpty(t, resp.Outcomes[1].Error)
	})
}

func TestModelsHandler_Activate(t *testing.T) {
	t.Run("unknown version returns 404", func(t *testing.T) {
		mock := &mockModelsService{
			activateFunc: func(context.Context, models.ModelKind, uuid.UUID) (*models.ModelVersion, error) {
				return nil, apperrors.NewNotFoundError("model_version", "model version not found")
			},
		}
		handler := NewModelsHandler(mock)
		id := uuid.New()
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/models/intent/versions/"+id.String()+"/activate", nil)
		req.SetPathValue("kind", "intent")
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()

		handler.Activate(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("success returns 200 with the active version", func(t *testing.T) {
		handler := NewModelsHandler(&mockModelsService{})
		id := uuid.New()
		req := httptest.NewRequest(http.MethodPost, "http://test/v1/models/intent/versions/"+id.String()+"/activate", nil)
		req.SetPathValue("kind", "intent")
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()

		handler.Activate(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var version models.ModelVersion

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &version))
		assert.True(t, version.Active)
		assert.Equal(t, id, version.ID)
	})
}

func TestModelsHandler_GetActive(t *testing.T) {
	t.Run("no active version returns 404", func(t *testing.T) {
		handler := NewModelsHandler(&mockModelsService{})
		req := httptest.NewRequest(http.MethodGet, "http://test/v1/models/reranker/active", nil)
		req.SetPathValue("kind", "reranker")
		rec := httptest.NewRecorder()

		handler.GetActive(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
