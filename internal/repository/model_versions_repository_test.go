package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinoteca/sommelier/internal/apperrors"
	"github.com/vinoteca/sommelier/internal/models"
)

func modelVersionRow(id uuid.UUID, kind models.ModelKind, active bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "kind", "weights", "metrics", "feature_count",
		"schema_version", "active", "created_by", "created_at",
	}).AddRow(
		id, kind, []byte(`{"bias":0.1,"similarity":1.2}`), []byte(`{"loss":0.3}`),
		1, 1, active, "api", time.Now(),
	)
}

func TestModelVersionsRepository_Activate(t *testing.T) {
	kind := models.ModelKindReranker

	t.Run("demotes the current version and promotes the new one in a single transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		newID := uuid.New()

		// Both statements must run inside one transaction, demote before
		// promote, so a reader never sees two or zero active versions.
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE model_versions SET active = false`).
			WithArgs(kind, newID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery(`UPDATE model_versions SET active = true`).
			WithArgs(newID, kind).
			WillReturnRows(modelVersionRow(newID, kind, true))
		mock.ExpectCommit()

		repo := NewModelVersionsRepository(mock)

		version, err := repo.Activate(context.Background(), kind, newID)
		require.NoError(t, err)

		assert.Equal(t, newID, version.ID)
		assert.True(t, version.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown version rolls back and maps to not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		unknownID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE model_versions SET active = false`).
			WithArgs(kind, unknownID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery(`UPDATE model_versions SET active = true`).
			WithArgs(unknownID, kind).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		repo := NewModelVersionsRepository(mock)

		_, err = repo.Activate(context.Background(), kind, unknownID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure never reaches the statements", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(assert.AnError)

		repo := NewModelVersionsRepository(mock)

		_, err = repo.Activate(context.Background(), kind, uuid.New())
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
