package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oasistrek/tourops-api/internal/dto"
	"github.com/oasistrek/tourops-api/internal/models"
	appErrors "github.com/oasistrek/tourops-api/pkg/errors"
	"github.com/oasistrek/tourops-api/pkg/export"
	"github.com/oasistrek/tourops-api/pkg/storage"
)

// Export datasets and formats accepted by Generate.
const (
	ExportDatasetGuides      = "guides"
	ExportDatasetDrivers     = "drivers"
	ExportDatasetAssignments = "assignments"

	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

const exportPageSize = 100

type exportGuideLister interface {
	List(ctx context.Context, filter models.GuideFilter) ([]models.Guide, int, error)
}

type exportDriverLister interface {
	List(ctx context.Context, filter models.DriverFilter) ([]models.Driver, int, error)
}

type exportAssignmentLister interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders roster datasets to downloadable files behind
// HMAC-signed, TTL-limited URLs.
type ExportService struct {
	guides      exportGuideLister
	drivers     exportDriverLister
	assignments exportAssignmentLister
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Guides      exportGuideLister
	Drivers     exportDriverLister
	Assignments exportAssignmentLister
	Storage     fileStorage
	CSV         csvRenderer
	PDF         pdfRenderer
	Signer      *storage.SignedURLSigner
	Logger      *zap.Logger
	Config      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(params ExportServiceParams) *ExportService {
	cfg := params.Config
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	csv := params.CSV
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	pdf := params.PDF
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		guides:      params.Guides,
		drivers:     params.Drivers,
		assignments: params.Assignments,
		storage:     params.Storage,
		csv:         csv,
		pdf:         pdf,
		signer:      params.Signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate renders the requested dataset and stores the file, returning a
// signed download URL.
func (s *ExportService) Generate(ctx context.Context, req dto.ExportRequest) (*dto.ExportResponse, error) {
	dataset := strings.ToLower(strings.TrimSpace(req.Dataset))
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	data, title, err := s.buildDataset(ctx, dataset)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(data)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(data, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("%s_%s.%s", dataset, time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(dataset, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &dto.ExportResponse{
		Dataset:   dataset,
		Format:    format,
		URL:       fmt.Sprintf("%s/exports/download?token=%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// ExportDownload carries an open export file ready for streaming. The caller
// owns the file handle.
type ExportDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// Download validates the signed token and opens the referenced file.
func (s *ExportService) Download(token string) (*ExportDownload, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		MimeType:  mimeForExport(relPath),
		SizeBytes: info.Size(),
	}, nil
}

// Cleanup removes files older than ttl, defaulting to the configured
// ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, dataset string) (export.Dataset, string, error) {
	switch dataset {
	case ExportDatasetGuides:
		return s.buildGuideDataset(ctx)
	case ExportDatasetDrivers:
		return s.buildDriverDataset(ctx)
	case ExportDatasetAssignments:
		return s.buildAssignmentDataset(ctx)
	default:
		return export.Dataset{}, "", appErrors.Clone(appErrors.ErrValidation, "dataset must be guides, drivers or assignments")
	}
}

func (s *ExportService) buildGuideDataset(ctx context.Context) (export.Dataset, string, error) {
	var guides []models.Guide
	for page := 1; ; page++ {
		batch, total, err := s.guides.List(ctx, models.GuideFilter{Page: page, PageSize: exportPageSize})
		if err != nil {
			return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guides")
		}
		guides = append(guides, batch...)
		if len(batch) == 0 || len(guides) >= total {
			break
		}
	}

	rows := make([]map[string]string, 0, len(guides))
	for _, guide := range guides {
		rows = append(rows, map[string]string{
			"ID":              guide.ID,
			"Full Name":       guide.FullName,
			"Email":           guide.Email,
			"Phone":           guide.Phone,
			"Specializations": strings.Join(guide.Specializations, ", "),
			"Rating":          fmt.Sprintf("%.1f", guide.Rating),
			"Status":          string(guide.Status),
			"Created At":      guide.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	data := export.Dataset{
		Headers: []string{"ID", "Full Name", "Email", "Phone", "Specializations", "Rating", "Status", "Created At"},
		Rows:    rows,
	}
	return data, "Guide Roster", nil
}

func (s *ExportService) buildDriverDataset(ctx context.Context) (export.Dataset, string, error) {
	var drivers []models.Driver
	for page := 1; ; page++ {
		batch, total, err := s.drivers.List(ctx, models.DriverFilter{Page: page, PageSize: exportPageSize})
		if err != nil {
			return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load drivers")
		}
		drivers = append(drivers, batch...)
		if len(batch) == 0 || len(drivers) >= total {
			break
		}
	}

	rows := make([]map[string]string, 0, len(drivers))
	for _, driver := range drivers {
		rows = append(rows, map[string]string{
			"ID":         driver.ID,
			"Full Name":  driver.FullName,
			"Phone":      driver.Phone,
			"License No": deref(driver.LicenseNo),
			"Vehicle":    deref(driver.Vehicle),
			"Status":     driver.Status,
			"Created At": driver.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	data := export.Dataset{
		Headers: []string{"ID", "Full Name", "Phone", "License No", "Vehicle", "Status", "Created At"},
		Rows:    rows,
	}
	return data, "Driver Roster", nil
}

func (s *ExportService) buildAssignmentDataset(ctx context.Context) (export.Dataset, string, error) {
	var assignments []models.AssignmentDetail
	for page := 1; ; page++ {
		batch, total, err := s.assignments.List(ctx, models.AssignmentFilter{Page: page, PageSize: exportPageSize})
		if err != nil {
			return export.Dataset{}, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
		}
		assignments = append(assignments, batch...)
		if len(batch) == 0 || len(assignments) >= total {
			break
		}
	}

	rows := make([]map[string]string, 0, len(assignments))
	for _, assignment := range assignments {
		rows = append(rows, map[string]string{
			"ID":         assignment.ID,
			"Tourist":    assignment.TouristName,
			"Guide":      assignment.GuideName,
			"Tour":       assignment.TourName,
			"Start Date": assignment.StartDate.UTC().Format("2006-01-02"),
			"End Date":   assignment.EndDate.UTC().Format("2006-01-02"),
			"Status":     string(assignment.Status),
		})
	}
	data := export.Dataset{
		Headers: []string{"ID", "Tourist", "Guide", "Tour", "Start Date", "End Date", "Status"},
		Rows:    rows,
	}
	return data, "Tour Assignments", nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func mimeForExport(relPath string) string {
	switch strings.ToLower(filepath.Ext(relPath)) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
