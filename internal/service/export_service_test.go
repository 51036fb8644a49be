package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasistrek/tourops-api/internal/dto"
	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
	"github.com/oasistrek/tourops-api/pkg/storage"
)

type exportGuidesStub struct{}

func (exportGuidesStub) List(_ context.Context, _ models.GuideFilter) ([]models.Guide, int, error) {
	return []models.Guide{
		{ID: "g1", FullName: "Omar Haddad", Email: "omar@oasistrek.io", Phone: "+962790000001", Specializations: pq.StringArray{"Desert", "Night Tour"}, Rating: 4.5, Status: models.GuideStatusAvailable},
	}, 1, nil
}

type exportDriversStub struct{}

func (exportDriversStub) List(_ context.Context, _ models.DriverFilter) ([]models.Driver, int, error) {
	vehicle := "Toyota Land Cruiser"
	return []models.Driver{
		{ID: "d1", FullName: "Khalid Mansour", Phone: "+962790001122", Vehicle: &vehicle, Status: "available"},
	}, 1, nil
}

type exportAssignmentsStub struct{}

func (exportAssignmentsStub) List(_ context.Context, _ models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	start := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	return []models.AssignmentDetail{
		{
			TourAssignment: models.TourAssignment{
				ID: "as-1", TouristID: "t1", GuideID: "g1", TourName: "Wadi Rum Classic",
				StartDate: start, EndDate: start.AddDate(0, 0, 7), Status: models.AssignmentStatusActive,
			},
			TouristName: "Aisha Rahman",
			GuideName:   "Omar Haddad",
		},
	}, 1, nil
}

func newExportServiceForTest(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewExportService(ExportServiceParams{
		Guides:      exportGuidesStub{},
		Drivers:     exportDriversStub{},
		Assignments: exportAssignmentsStub{},
		Storage:     store,
		Signer:      storage.NewSignedURLSigner("secret", time.Hour),
		Config:      ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour},
	})
}

func TestExportServiceGenerateGuidesCSV(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.Generate(context.Background(), dto.ExportRequest{Dataset: "guides", Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "guides", result.Dataset)
	assert.Equal(t, "csv", result.Format)
	require.Contains(t, result.URL, "/exports/download?token=")

	download, err := svc.Download(tokenFromURL(t, result.URL))
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	assert.Equal(t, "text/csv", download.MimeType)

	payload, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Omar Haddad")
	assert.Contains(t, string(payload), "Desert, Night Tour")
}

func TestExportServiceGenerateAssignmentsPDF(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.Generate(context.Background(), dto.ExportRequest{Dataset: "assignments", Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "pdf", result.Format)

	download, err := svc.Download(tokenFromURL(t, result.URL))
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	assert.Equal(t, "application/pdf", download.MimeType)
	assert.Greater(t, download.SizeBytes, int64(0))
}

func TestExportServiceDownloadRejectsBadToken(t *testing.T) {
	svc := newExportServiceForTest(t)

	_, err := svc.Download("not-a-real-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportServiceDefaultsToCSV(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.Generate(context.Background(), dto.ExportRequest{Dataset: "drivers"})
	require.NoError(t, err)
	assert.Equal(t, "csv", result.Format)
}

func TestExportServiceRejectsUnknownDataset(t *testing.T) {
	svc := newExportServiceForTest(t)

	_, err := svc.Generate(context.Background(), dto.ExportRequest{Dataset: "tourists", Format: "csv"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newExportServiceForTest(t)

	_, err := svc.Generate(context.Background(), dto.ExportRequest{Dataset: "guides", Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceCleanupRemovesExpiredFiles(t *testing.T) {
	svc := newExportServiceForTest(t)

	result, err := svc.Generate(context.Background(), dto.ExportRequest{Dataset: "guides", Format: "csv"})
	require.NoError(t, err)
	token := tokenFromURL(t, result.URL)

	time.Sleep(10 * time.Millisecond)
	removed, err := svc.Cleanup(time.Nanosecond)
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	_, err = svc.Download(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func tokenFromURL(t *testing.T, url string) string {
	t.Helper()
	parts := strings.SplitN(url, "token=", 2)
	require.Len(t, parts, 2)
	return parts[1]
}
