package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

// ExamRepository manages persistence for exams.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// List returns every exam, newest first.
func (r *ExamRepository) List(ctx context.Context) ([]models.Exam, error) {
	const query = `SELECT id, name, exam_date, created_at FROM exams ORDER BY exam_date DESC, id ASC`
	exams := make([]models.Exam, 0)
	if err := r.db.SelectContext(ctx, &exams, query); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// FindByID returns an exam by ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, name, exam_date, created_at FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// FindByName returns the earliest created exam carrying the name.
func (r *ExamRepository) FindByName(ctx context.Context, name string) (*models.Exam, error) {
	const query = `SELECT id, name, exam_date, created_at FROM exams WHERE name = $1 ORDER BY created_at ASC LIMIT 1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, name); err != nil {
		return nil, err
	}
	return &exam, nil
}

// Create persists an exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO exams (id, name, exam_date, created_at) VALUES (:id, :name, :exam_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}
