package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/internal/dto"
	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

type importClassStore interface {
	FindByName(ctx context.Context, name string) (*models.ClassGroup, error)
	Create(ctx context.Context, class *models.ClassGroup) error
}

type importStudentStore interface {
	FindByNameInClass(ctx context.Context, name, classID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type importExamStore interface {
	FindByName(ctx context.Context, name string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
}

type scoreUpserter interface {
	Upsert(ctx context.Context, score *models.Score) error
}

var examDateLayouts = []string{"2006-01-02", time.RFC3339, "2006/01/02", "2006-01-02 15:04:05", "01/02/2006"}

// ImportService loads score batches addressed by student, class and exam names.
type ImportService struct {
	classes   importClassStore
	students  importStudentStore
	exams     importExamStore
	scores    scoreUpserter
	refresh   reportRefresh
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	maxRows   int
	now       func() time.Time
}

// NewImportService constructs ImportService. maxRows <= 0 disables the batch limit.
func NewImportService(classes importClassStore, students importStudentStore, exams importExamStore, scores scoreUpserter, invalidator ReportInvalidator, warmer ClassWarmer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, maxRows int) *ImportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{
		classes:   classes,
		students:  students,
		exams:     exams,
		scores:    scores,
		refresh:   reportRefresh{invalidator: invalidator, warmer: warmer, logger: logger},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		maxRows:   maxRows,
		now:       time.Now,
	}
}

// Import processes every row independently; a failed row never aborts the batch.
// Cached reports are dropped on every exit once a row changed a class roster or
// its scores, including when ctx is cancelled mid-batch.
func (s *ImportService) Import(ctx context.Context, req dto.ImportScoresRequest) (*dto.ImportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "scores are required")
	}
	if s.maxRows > 0 && len(req.Scores) > s.maxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("import exceeds %d rows", s.maxRows))
	}

	result := &dto.ImportResult{Errors: make([]dto.ImportRowError, 0)}
	batch := newImportBatch()
	defer func() {
		if len(batch.touched) > 0 {
			s.refresh.after(ctx, batch.touchedClasses()...)
		}
	}()
	for i, row := range req.Scores {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("score import interrupted", zap.Int("processed", i), zap.Error(err))
			return nil, err
		}
		if err := s.importRow(ctx, batch, row); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, dto.ImportRowError{Row: i + 1, Message: err.Error()})
			continue
		}
		result.Success++
	}

	s.metrics.RecordImport(result.Success, result.Failed)
	s.logger.Info("score import finished",
		zap.Int("rows", len(req.Scores)),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed))
	return result, nil
}

// ImportXLSX reads the first sheet of a workbook and imports its rows.
func (s *ImportService) ImportXLSX(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	rows, err := ParseScoreSheet(r)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, dto.ImportScoresRequest{Scores: rows})
}

type importBatch struct {
	classes  map[string]string
	students map[[2]string]string
	exams    map[string]string
	touched  map[string]struct{}
}

func newImportBatch() *importBatch {
	return &importBatch{
		classes:  make(map[string]string),
		students: make(map[[2]string]string),
		exams:    make(map[string]string),
		touched:  make(map[string]struct{}),
	}
}

func (b *importBatch) touchedClasses() []string {
	out := make([]string, 0, len(b.touched))
	for id := range b.touched {
		out = append(out, id)
	}
	return out
}

// rowError carries a message safe to return to the uploader.
type rowError string

func (e rowError) Error() string { return string(e) }

func (s *ImportService) importRow(ctx context.Context, batch *importBatch, row dto.ImportScoreRow) error {
	studentName := strings.TrimSpace(row.StudentName)
	className := strings.TrimSpace(row.ClassName)
	examName := strings.TrimSpace(row.ExamName)
	subjectInput := strings.TrimSpace(row.Subject)

	if studentName == "" || className == "" || examName == "" || subjectInput == "" || !row.Score.Set {
		return rowError("missing required fields")
	}
	value := row.Score.Value
	if math.IsNaN(value) || value < models.MinScore || value > models.MaxScore {
		return rowError("score must be between 0 and 100")
	}
	subject, ok := models.ParseSubject(subjectInput)
	if !ok {
		return rowError(fmt.Sprintf("invalid subject %q", subjectInput))
	}
	examDate, err := s.parseExamDate(row.ExamDate)
	if err != nil {
		return err
	}

	classID, err := s.resolveClass(ctx, batch, className)
	if err != nil {
		return s.processingError("class", err)
	}
	studentID, err := s.resolveStudent(ctx, batch, studentName, classID)
	if err != nil {
		return s.processingError("student", err)
	}
	examID, err := s.resolveExam(ctx, batch, examName, examDate)
	if err != nil {
		return s.processingError("exam", err)
	}

	score := &models.Score{StudentID: studentID, ExamID: examID, Subject: subject, Score: value}
	if err := s.scores.Upsert(ctx, score); err != nil {
		return s.processingError("score", err)
	}
	batch.touched[classID] = struct{}{}
	return nil
}

func (s *ImportService) processingError(entity string, err error) error {
	s.logger.Warn("import row failed", zap.String("entity", entity), zap.Error(err))
	return rowError(fmt.Sprintf("failed to save %s", entity))
}

func (s *ImportService) parseExamDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := s.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	for _, layout := range examDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, rowError(fmt.Sprintf("invalid exam date %q", raw))
}

func (s *ImportService) resolveClass(ctx context.Context, batch *importBatch, name string) (string, error) {
	if id, ok := batch.classes[name]; ok {
		return id, nil
	}
	class, err := s.classes.FindByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		class = &models.ClassGroup{Name: name}
		err = s.classes.Create(ctx, class)
	}
	if err != nil {
		return "", err
	}
	batch.classes[name] = class.ID
	return class.ID, nil
}

func (s *ImportService) resolveStudent(ctx context.Context, batch *importBatch, name, classID string) (string, error) {
	key := [2]string{name, classID}
	if id, ok := batch.students[key]; ok {
		return id, nil
	}
	student, err := s.students.FindByNameInClass(ctx, name, classID)
	if errors.Is(err, sql.ErrNoRows) {
		student = &models.Student{Name: name, ClassID: classID}
		if err = s.students.Create(ctx, student); err == nil {
			batch.touched[classID] = struct{}{}
		}
	}
	if err != nil {
		return "", err
	}
	batch.students[key] = student.ID
	return student.ID, nil
}

// resolveExam reuses an existing exam by name; the row date only applies to a newly created exam.
func (s *ImportService) resolveExam(ctx context.Context, batch *importBatch, name string, date time.Time) (string, error) {
	if id, ok := batch.exams[name]; ok {
		return id, nil
	}
	exam, err := s.exams.FindByName(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		exam = &models.Exam{Name: name, Date: date}
		err = s.exams.Create(ctx, exam)
	}
	if err != nil {
		return "", err
	}
	batch.exams[name] = exam.ID
	return exam.ID, nil
}
