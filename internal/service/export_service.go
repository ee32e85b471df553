package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danuarta/mediaportal-api/internal/models"
	"github.com/danuarta/mediaportal-api/pkg/export"
	appErrors "github.com/danuarta/mediaportal-api/pkg/errors"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat selects the rendered document type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportDocument is a rendered report ready to stream to the caller.
type ExportDocument struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders roster and media library reports. Documents are
// built in memory and streamed straight back; nothing is kept on disk.
type ExportService struct {
	students studentRepository
	media    mediaRepository
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(students studentRepository, media mediaRepository, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{students: students, media: media, csv: csv, pdf: pdf, logger: logger}
}

// ParseExportFormat validates the requested format, defaulting to CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(raw) {
	case "", "csv":
		return ExportFormatCSV, nil
	case "pdf":
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// RosterReport renders the full roster as CSV or PDF.
func (s *ExportService) RosterReport(ctx context.Context, filter models.StudentFilter, format ExportFormat) (*ExportDocument, error) {
	filter.Page = 1
	filter.PageSize = 100
	var rows []map[string]string
	for {
		students, total, err := s.students.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		for _, st := range students {
			active := "no"
			if st.Active {
				active = "yes"
			}
			rows = append(rows, map[string]string{
				"Username":    st.Username,
				"Full Name":   st.FullName,
				"Roll Number": st.RollNumber,
				"Class":       st.Class,
				"Section":     st.Section,
				"Phone":       st.Phone,
				"Active":      active,
			})
		}
		if len(rows) >= total || len(students) == 0 {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"Username", "Full Name", "Roll Number", "Class", "Section", "Phone", "Active"},
		Rows:    rows,
	}
	return s.render(dataset, "Student Roster", "roster", format)
}

// MediaReport renders the media library as CSV or PDF.
func (s *ExportService) MediaReport(ctx context.Context, filter models.MediaFilter, format ExportFormat) (*ExportDocument, error) {
	filter.Page = 1
	filter.PageSize = 100
	var rows []map[string]string
	for {
		items, total, err := s.media.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load media library")
		}
		for _, item := range items {
			rows = append(rows, map[string]string{
				"Title":       item.Title,
				"Kind":        string(item.Kind),
				"Status":      string(item.Status),
				"Audience":    item.AssignedTo,
				"Uploaded By": item.UploadedBy,
				"Size":        fmt.Sprintf("%d", item.SizeBytes),
				"Created":     item.CreatedAt.Format(time.RFC3339),
			})
		}
		if len(rows) >= total || len(items) == 0 {
			break
		}
		filter.Page++
	}

	dataset := export.Dataset{
		Headers: []string{"Title", "Kind", "Status", "Audience", "Uploaded By", "Size", "Created"},
		Rows:    rows,
	}
	return s.render(dataset, "Media Library", "media", format)
}

func (s *ExportService) render(dataset export.Dataset, title, baseName string, format ExportFormat) (*ExportDocument, error) {
	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportDocument{
			Filename:    fmt.Sprintf("%s-%s.pdf", baseName, stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportDocument{
			Filename:    fmt.Sprintf("%s-%s.csv", baseName, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	}
}
