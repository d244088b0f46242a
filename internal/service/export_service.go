package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
	"github.com/noah-isme/score-analytics-api/pkg/export"
)

// ExportFormat names a supported download format.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

var exportContentTypes = map[ExportFormat]string{
	ExportFormatCSV:  "text/csv",
	ExportFormatPDF:  "application/pdf",
	ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type classReporter interface {
	ClassReport(ctx context.Context, classID string, subject *models.Subject) (*models.ClassAnalyticsReport, bool, error)
}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(title string, tables ...export.Table) ([]byte, error)
}

type xlsxRenderer interface {
	Render(tables ...export.Table) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders class reports as downloadable documents.
type ExportService struct {
	reports classReporter
	csv     csvRenderer
	pdf     pdfRenderer
	xlsx    xlsxRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(reports classReporter, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{reports: reports, csv: csv, pdf: pdf, xlsx: xlsx, logger: logger}
}

// ParseExportFormat resolves a query value; empty means CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	format := ExportFormat(strings.ToLower(strings.TrimSpace(raw)))
	if format == "" {
		return ExportFormatCSV, nil
	}
	if _, ok := exportContentTypes[format]; !ok {
		return "", appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", raw))
	}
	return format, nil
}

// ExportClassReport renders the class report. CSV carries the ranking table only.
func (s *ExportService) ExportClassReport(ctx context.Context, classID string, subject *models.Subject, format ExportFormat) (*ExportFile, error) {
	contentType, ok := exportContentTypes[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported export format %q", format))
	}
	report, _, err := s.reports.ClassReport(ctx, classID, subject)
	if err != nil {
		return nil, err
	}

	summary := SummaryTable(report)
	rankings := RankingTable(report)

	var data []byte
	switch format {
	case ExportFormatCSV:
		data, err = s.csv.Render(rankings)
	case ExportFormatPDF:
		data, err = s.pdf.Render(report.Class.Name, summary, rankings)
	case ExportFormatXLSX:
		data, err = s.xlsx.Render(summary, rankings)
	}
	if err != nil {
		s.logger.Error("render class export", zap.String("class_id", classID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    exportFilename(report.Class.Name, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// SummaryTable lists per exam and subject statistics, newest exam first.
func SummaryTable(report *models.ClassAnalyticsReport) export.Table {
	headers := []string{"exam", "exam_date", "subject", "count", "average"}
	for b := models.ScoreBucket(0); b < models.BucketCount; b++ {
		headers = append(headers, b.Label())
	}
	table := export.Table{Name: "Summary", Headers: headers, Rows: make([][]string, 0)}
	for _, exam := range report.Exams {
		for _, subject := range models.Subjects {
			key := models.ExamSubjectKey{ExamID: exam.ID, Subject: subject}
			dist, ok := report.ScoreDistribution[key]
			if !ok {
				continue
			}
			row := []string{
				exam.Name,
				exam.Date.Format(time.DateOnly),
				string(subject),
				strconv.Itoa(dist.Total()),
				formatScore(report.ExamSubjectAverages[exam.ID][subject]),
			}
			for _, n := range dist {
				row = append(row, strconv.Itoa(n))
			}
			table.Rows = append(table.Rows, row)
		}
	}
	return table
}

// RankingTable lists every leaderboard row in exam, subject, rank order.
func RankingTable(report *models.ClassAnalyticsReport) export.Table {
	table := export.Table{
		Name:    "Rankings",
		Headers: []string{"exam", "exam_date", "subject", "rank", "student_id", "student_name", "score"},
		Rows:    make([][]string, 0, report.TotalScores),
	}
	for _, exam := range report.Exams {
		for _, subject := range models.Subjects {
			for _, entry := range report.Leaderboards[models.ExamSubjectKey{ExamID: exam.ID, Subject: subject}] {
				table.Rows = append(table.Rows, []string{
					exam.Name,
					exam.Date.Format(time.DateOnly),
					string(subject),
					strconv.Itoa(entry.Rank),
					entry.StudentID,
					entry.StudentName,
					formatScore(entry.Score),
				})
			}
		}
	}
	return table
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func exportFilename(className string, format ExportFormat) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(className))
	if name == "" {
		name = "class"
	}
	return fmt.Sprintf("%s-report.%s", name, format)
}
