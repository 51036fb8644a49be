package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/models"
)

func newAssignmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func assignmentRows(id, touristID, guideID, tourName string, status models.AssignmentStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "tourist_id", "guide_id", "tour_name", "start_date", "end_date", "status", "created_at", "updated_at"}).
		AddRow(id, touristID, guideID, tourName, now, now.AddDate(0, 0, 7), status, now, now)
}

func TestAssignmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tourist_id", "guide_id", "tour_name", "start_date", "end_date", "status", "created_at", "updated_at", "tourist_name", "guide_name"}).
		AddRow("a1", "tr1", "g1", "Desert Safari", now, now.AddDate(0, 0, 7), models.AssignmentStatusActive, now, now, "Aisha", "Omar")
	mock.ExpectQuery("SELECT ta.id, ta.tourist_id").WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.AssignmentFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Aisha", list[0].TouristName)
	assert.Equal(t, "Omar", list[0].GuideName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryUpsertCurrentReassigns(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, tourist_id, guide_id, tour_name, start_date, end_date, status, created_at, updated_at FROM tour_assignments WHERE tourist_id = .* FOR UPDATE").
		WithArgs("tr1", models.AssignmentStatusPending, models.AssignmentStatusActive).
		WillReturnRows(assignmentRows("a1", "tr1", "g1", "Oasis Trek", models.AssignmentStatusActive))
	mock.ExpectQuery("UPDATE tour_assignments SET guide_id = .* RETURNING").
		WithArgs("a1", "g2", sqlmock.AnyArg()).
		WillReturnRows(assignmentRows("a1", "tr1", "g2", "Oasis Trek", models.AssignmentStatusActive))
	mock.ExpectCommit()

	outcome, err := repo.UpsertCurrent(context.Background(), &models.TourAssignment{TouristID: "tr1", GuideID: "g2"})
	require.NoError(t, err)
	assert.False(t, outcome.Created)
	assert.Equal(t, "g1", outcome.PreviousGuideID)
	assert.Equal(t, "g2", outcome.Assignment.GuideID)
	assert.Equal(t, "Oasis Trek", outcome.Assignment.TourName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryUpsertCurrentInserts(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	insertedRows := sqlmock.NewRows([]string{"id", "tourist_id", "guide_id", "tour_name", "start_date", "end_date", "status", "created_at", "updated_at", "inserted"}).
		AddRow("a2", "tr1", "g2", "Standard Tour", now, now.AddDate(0, 0, 7), models.AssignmentStatusActive, now, now, true)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, tourist_id, guide_id, tour_name, start_date, end_date, status, created_at, updated_at FROM tour_assignments WHERE tourist_id = .* FOR UPDATE").
		WithArgs("tr1", models.AssignmentStatusPending, models.AssignmentStatusActive).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO tour_assignments").
		WillReturnRows(insertedRows)
	mock.ExpectCommit()

	candidate := &models.TourAssignment{
		TouristID: "tr1",
		GuideID:   "g2",
		TourName:  "Standard Tour",
		StartDate: now,
		EndDate:   now.AddDate(0, 0, 7),
		Status:    models.AssignmentStatusActive,
	}
	outcome, err := repo.UpsertCurrent(context.Background(), candidate)
	require.NoError(t, err)
	assert.True(t, outcome.Created)
	assert.Empty(t, outcome.PreviousGuideID)
	assert.Equal(t, models.AssignmentStatusActive, outcome.Assignment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("UPDATE tour_assignments SET status = .* RETURNING").
		WithArgs("a1", models.AssignmentStatusCompleted, sqlmock.AnyArg()).
		WillReturnRows(assignmentRows("a1", "tr1", "g1", "Oasis Trek", models.AssignmentStatusCompleted))

	updated, err := repo.UpdateStatus(context.Background(), "a1", models.AssignmentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusCompleted, updated.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("DELETE FROM tour_assignments WHERE id = .* RETURNING").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
