package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
	"github.com/noah-isme/thesis-defense-api/pkg/export"
)

type defenseExportReader interface {
	ListAll(ctx context.Context, filter models.DefenseScheduleFilter) ([]models.DefenseScheduleDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var defenseExportHeaders = []string{"Date", "Start", "End", "Room", "Student", "Thesis", "Supervisor", "Principal", "Examinator", "Status"}

// ExportService renders the defense plan as a downloadable file.
type ExportService struct {
	defenses defenseExportReader
	csv      csvRenderer
	pdf      pdfRenderer
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService. Times are printed in loc.
func NewExportService(defenses defenseExportReader, loc *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = FixedZone(7)
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{defenses: defenses, csv: csv, pdf: pdf, loc: loc, logger: logger, now: time.Now}
}

// Export renders every defense matching the room/professor/status/date
// filters of query, ignoring pagination.
func (s *ExportService) Export(ctx context.Context, format dto.ExportFormat, query dto.DefenseListQuery) (*dto.ExportFile, error) {
	filter, err := s.filter(query)
	if err != nil {
		return nil, err
	}

	items, err := s.defenses.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load defenses for export")
	}
	dataset := s.dataset(items)

	stamp := s.now().In(s.loc).Format("20060102_150405")
	file := &dto.ExportFile{}
	switch format {
	case dto.ExportFormatCSV, "":
		file.Payload, err = s.csv.Render(dataset)
		file.Filename = fmt.Sprintf("defense_schedule_%s.csv", stamp)
		file.ContentType = "text/csv"
	case dto.ExportFormatPDF:
		file.Payload, err = s.pdf.Render(dataset, "Thesis Defense Schedule")
		file.Filename = fmt.Sprintf("defense_schedule_%s.pdf", stamp)
		file.ContentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("defense schedule exported", zap.String("content_type", file.ContentType), zap.Int("rows", len(items)))
	return file, nil
}

func (s *ExportService) filter(query dto.DefenseListQuery) (models.DefenseScheduleFilter, error) {
	filter := models.DefenseScheduleFilter{
		Room:        query.Room,
		ProfessorID: query.ProfessorID,
		Status:      models.DefenseStatus(query.Status),
	}
	if query.From != "" {
		from, err := time.ParseInLocation("2006-01-02", query.From, s.loc)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "from must be a YYYY-MM-DD date")
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := time.ParseInLocation("2006-01-02", query.To, s.loc)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "to must be a YYYY-MM-DD date")
		}
		to = to.AddDate(0, 0, 1)
		filter.To = &to
	}
	return filter, nil
}

func (s *ExportService) dataset(items []models.DefenseScheduleDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		start := item.StartTime.In(s.loc)
		end := item.EndTime.In(s.loc)
		rows = append(rows, map[string]string{
			"Date":       start.Format("Mon 02 Jan 2006"),
			"Start":      start.Format("15:04"),
			"End":        end.Format("15:04"),
			"Room":       item.Room,
			"Student":    nameOr(item.StudentName, item.StudentID),
			"Thesis":     item.ThesisTitle,
			"Supervisor": nameOr(item.SupervisorName, item.SupervisorID),
			"Principal":  nameOr(item.PrincipalName, item.PrincipalID),
			"Examinator": nameOr(item.ExaminatorName, item.ExaminatorID),
			"Status":     string(item.Status),
		})
	}
	return export.Dataset{Headers: defenseExportHeaders, Rows: rows}
}

func nameOr(name, id string) string {
	if name != "" {
		return name
	}
	if id == "" {
		return "-"
	}
	return id
}
