package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/internal/analytics"
	"github.com/noah-isme/score-analytics-api/internal/models"
	"github.com/noah-isme/score-analytics-api/internal/repository"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

type scoreRepository interface {
	FetchScores(ctx context.Context, selector models.ScoreSelector) ([]models.ScoreView, error)
	Create(ctx context.Context, score *models.Score) error
	Upsert(ctx context.Context, score *models.Score) error
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type examFinder interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

// ScoreRequest captures the payload for creating or correcting a score.
type ScoreRequest struct {
	StudentID string   `json:"student_id" validate:"required"`
	ExamID    string   `json:"exam_id" validate:"required"`
	Subject   string   `json:"subject" validate:"required"`
	Score     *float64 `json:"score" validate:"required,gte=0,lte=100"`
}

// ScoreService coordinates score reads and writes.
type ScoreService struct {
	scores    scoreRepository
	students  studentFinder
	exams     examFinder
	refresh   reportRefresh
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScoreService constructs ScoreService.
func NewScoreService(scores scoreRepository, students studentFinder, exams examFinder, invalidator ReportInvalidator, warmer ClassWarmer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{
		scores:    scores,
		students:  students,
		exams:     exams,
		refresh:   reportRefresh{invalidator: invalidator, warmer: warmer, logger: logger},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns raw score views for exactly one student or class.
func (s *ScoreService) List(ctx context.Context, selector models.ScoreSelector) ([]models.ScoreView, error) {
	if err := analytics.ValidateSelector(selector); err != nil {
		return nil, err
	}
	start := time.Now()
	scores, err := s.scores.FetchScores(ctx, selector)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}
	s.metrics.ObserveDBQuery("scores_fetch", time.Since(start))
	return scores, nil
}

// Create records a new score. An existing (student, exam, subject) score is a conflict.
func (s *ScoreService) Create(ctx context.Context, req ScoreRequest) (*models.Score, error) {
	score, classID, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.scores.Create(ctx, score); err != nil {
		if errors.Is(err, repository.ErrDuplicateScore) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "score already recorded for this student, exam and subject")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create score")
	}
	s.refresh.after(ctx, classID)
	return score, nil
}

// Upsert creates or replaces the score for the triple.
func (s *ScoreService) Upsert(ctx context.Context, req ScoreRequest) (*models.Score, error) {
	score, classID, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.scores.Upsert(ctx, score); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save score")
	}
	s.refresh.after(ctx, classID)
	return score, nil
}

func (s *ScoreService) prepare(ctx context.Context, req ScoreRequest) (*models.Score, string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	subject, ok := models.ParseSubject(req.Subject)
	if !ok {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown subject %q", req.Subject))
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, "", notFoundOrInternal(err, "student")
	}
	if _, err := s.exams.FindByID(ctx, req.ExamID); err != nil {
		return nil, "", notFoundOrInternal(err, "exam")
	}

	return &models.Score{
		StudentID: student.ID,
		ExamID:    req.ExamID,
		Subject:   subject,
		Score:     *req.Score,
	}, student.ClassID, nil
}

func notFoundOrInternal(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}
