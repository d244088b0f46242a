package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

type rosterClassRepository interface {
	List(ctx context.Context) ([]models.ClassDetail, error)
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	FindByName(ctx context.Context, name string) (*models.ClassGroup, error)
	Create(ctx context.Context, class *models.ClassGroup) error
}

type rosterStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByNameInClass(ctx context.Context, name, classID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type rosterExamRepository interface {
	List(ctx context.Context) ([]models.Exam, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
}

// CreateClassRequest captures creation payload.
type CreateClassRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateStudentRequest captures creation payload.
type CreateStudentRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	ClassID string `json:"class_id" validate:"required"`
}

// CreateExamRequest captures creation payload. Date uses YYYY-MM-DD.
type CreateExamRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// RosterService manages the classes, students and exams scores refer to.
type RosterService struct {
	classes   rosterClassRepository
	students  rosterStudentRepository
	exams     rosterExamRepository
	refresh   reportRefresh
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRosterService constructs RosterService. Enrolling a student changes the
// class roster size, so cached reports are refreshed through invalidator and warmer.
func NewRosterService(classes rosterClassRepository, students rosterStudentRepository, exams rosterExamRepository, invalidator ReportInvalidator, warmer ClassWarmer, validate *validator.Validate, logger *zap.Logger) *RosterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		classes:   classes,
		students:  students,
		exams:     exams,
		refresh:   reportRefresh{invalidator: invalidator, warmer: warmer, logger: logger},
		validator: validate,
		logger:    logger,
	}
}

// ListClasses returns every class ordered by name with student counts.
func (s *RosterService) ListClasses(ctx context.Context) ([]models.ClassDetail, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// GetClass returns a class with its student count.
func (s *RosterService) GetClass(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "class")
	}
	return class, nil
}

// CreateClass adds a class. Names are unique.
func (s *RosterService) CreateClass(ctx context.Context, req CreateClassRequest) (*models.ClassGroup, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if _, err := s.classes.FindByName(ctx, req.Name); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class name already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}

	class := &models.ClassGroup{Name: req.Name}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("name", class.Name))
	return class, nil
}

// ListStudents returns students with pagination metadata.
func (s *RosterService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetStudent returns a student with the class name.
func (s *RosterService) GetStudent(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "student")
	}
	return student, nil
}

// CreateStudent enrols a student into an existing class. Names are unique within a class.
func (s *RosterService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		return nil, notFoundOrInternal(err, "class")
	}
	if _, err := s.students.FindByNameInClass(ctx, req.Name, req.ClassID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already exists in class")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student name")
	}

	student := &models.Student{Name: req.Name, ClassID: req.ClassID}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.refresh.after(ctx, student.ClassID)
	return student, nil
}

// ListExams returns exams newest first.
func (s *RosterService) ListExams(ctx context.Context) ([]models.Exam, error) {
	exams, err := s.exams.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// CreateExam records a dated exam.
func (s *RosterService) CreateExam(ctx context.Context, req CreateExamRequest) (*models.Exam, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam date")
	}
	exam := &models.Exam{Name: req.Name, Date: date}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}
