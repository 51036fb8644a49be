package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/models"
)

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tourist_id", "adults", "children", "note", "status",
		"assigned_guide_id", "admin_response", "responded_by", "responded_at",
		"created_at", "updated_at", "tourist_name", "tourist_email", "guide_name",
	})
}

func TestGuideRequestRepositoryCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewGuideRequestRepository(db)

	mock.ExpectExec("INSERT INTO guide_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.GuideRequest{TouristID: "t1", Adults: 2, Children: 1}
	require.NoError(t, repo.Create(context.Background(), request))
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuideRequestRepositoryList(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewGuideRequestRepository(db)

	now := time.Now()
	rows := requestDetailRows().
		AddRow("r1", "t1", 2, 0, "prefer mornings", models.RequestStatusPending, nil, nil, nil, nil, now, now, "Aisha", "aisha@example.com", nil)

	mock.ExpectQuery("SELECT gr.id, gr.tourist_id").
		WithArgs(models.RequestStatusPending).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(models.RequestStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.GuideRequestFilter{Status: models.RequestStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Aisha", list[0].TouristName)
	assert.Nil(t, list[0].GuideName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuideRequestRepositoryRespondApprove(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewGuideRequestRepository(db)

	guideID := "g1"
	respondedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE guide_requests SET").
		WithArgs(models.RequestStatusApproved, guideID, "see you at 9", "admin-1", respondedAt, respondedAt, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	note := "see you at 9"
	err := repo.Respond(context.Background(), RespondParams{
		ID:              "r1",
		Status:          models.RequestStatusApproved,
		AssignedGuideID: &guideID,
		AdminResponse:   &note,
		RespondedBy:     "admin-1",
		RespondedAt:     respondedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuideRequestRepositoryRespondRejectClearsGuide(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewGuideRequestRepository(db)

	respondedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE guide_requests SET").
		WithArgs(models.RequestStatusRejected, nil, "fully booked", "admin-1", respondedAt, respondedAt, "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	note := "fully booked"
	err := repo.Respond(context.Background(), RespondParams{
		ID:            "r1",
		Status:        models.RequestStatusRejected,
		AdminResponse: &note,
		RespondedBy:   "admin-1",
		RespondedAt:   respondedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuideRequestRepositoryRespondAlreadyReviewed(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewGuideRequestRepository(db)

	mock.ExpectExec("UPDATE guide_requests SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Respond(context.Background(), RespondParams{
		ID:          "r1",
		Status:      models.RequestStatusRejected,
		RespondedBy: "admin-1",
		RespondedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuideRequestRepositoryListRecentPending(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewGuideRequestRepository(db)

	now := time.Now()
	rows := requestDetailRows().
		AddRow("r2", "t2", 1, 0, nil, models.RequestStatusPending, nil, nil, nil, nil, now, now, "Noura", nil, nil)

	mock.ExpectQuery("ORDER BY gr.created_at DESC LIMIT 5").
		WithArgs(models.RequestStatusPending).
		WillReturnRows(rows)

	list, err := repo.ListRecentPending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Noura", list[0].TouristName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
