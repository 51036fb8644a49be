package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/models"
)

func newTouristRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func touristColumns() []string {
	return []string{
		"id", "user_id", "user_type", "full_name", "email", "phone", "nationality", "created_at", "updated_at",
		"current_assignment_id", "current_guide_id", "current_guide_name", "current_status",
	}
}

func TestTouristRepositoryListDerivesStatus(t *testing.T) {
	db, mock, cleanup := newTouristRepoMock(t)
	defer cleanup()
	repo := NewTouristRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(touristColumns()).
		AddRow("tr1", nil, "tourist", "Aisha", "aisha@example.com", nil, "AE", now, now,
			"a1", "g1", "Omar", models.AssignmentStatusActive).
		AddRow("tr2", nil, "tourist", "Lena", nil, "+4912345", "DE", now, now,
			nil, nil, nil, nil).
		AddRow("tr3", nil, "tourist", "Marco", nil, nil, "IT", now, now,
			"a2", "g2", "Salim", models.AssignmentStatusPending)
	mock.ExpectQuery("SELECT p.id, p.user_id").WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT p.id)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	list, total, err := repo.List(context.Background(), models.TouristFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 3, total)

	assert.Equal(t, models.TouristStatusAssigned, list[0].Status)
	require.NotNil(t, list[0].AssignedGuide)
	assert.Equal(t, "Omar", *list[0].AssignedGuide)

	assert.Equal(t, models.TouristStatusActive, list[1].Status)
	assert.Nil(t, list[1].AssignedGuide)

	assert.Equal(t, models.TouristStatusPending, list[2].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouristRepositoryUpsertForUser(t *testing.T) {
	db, mock, cleanup := newTouristRepoMock(t)
	defer cleanup()
	repo := NewTouristRepository(db)

	mock.ExpectExec("INSERT INTO profiles").
		WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "u1"
	email := "aisha@example.com"
	profile := &models.Profile{
		UserID:   &userID,
		UserType: models.UserTypeTourist,
		FullName: "Aisha",
		Email:    &email,
	}
	require.NoError(t, repo.UpsertForUser(context.Background(), profile))
	assert.NotEmpty(t, profile.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouristRepositoryCountByDerivedStatus(t *testing.T) {
	db, mock, cleanup := newTouristRepoMock(t)
	defer cleanup()
	repo := NewTouristRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("active", 4).
		AddRow("assigned", 2)
	mock.ExpectQuery("SELECT CASE").WillReturnRows(rows)

	counts, err := repo.CountByDerivedStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "active", counts[0].Status)
	assert.Equal(t, 4, counts[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
