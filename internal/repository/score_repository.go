package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

// ErrDuplicateScore reports an insert colliding with an existing (student, exam, subject) score.
var ErrDuplicateScore = errors.New("score already exists")

const uniqueViolation = "23505"

const scoreViewQuery = `SELECT sc.id, sc.student_id, st.name AS student_name, st.class_id, sc.exam_id,
        e.name AS exam_name, e.exam_date, sc.subject, sc.score
        FROM scores sc
        JOIN students st ON st.id = sc.student_id
        JOIN exams e ON e.id = sc.exam_id`

// ScoreRepository manages persistence for scores.
type ScoreRepository struct {
	db *sqlx.DB
}

// NewScoreRepository constructs a ScoreRepository.
func NewScoreRepository(db *sqlx.DB) *ScoreRepository {
	return &ScoreRepository{db: db}
}

// FetchScores returns the joined score views matching the selector. Rows carry no ordering guarantee.
func (r *ScoreRepository) FetchScores(ctx context.Context, selector models.ScoreSelector) ([]models.ScoreView, error) {
	var args []interface{}
	var conditions []string
	if selector.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.student_id = $%d", len(args)+1))
		args = append(args, selector.StudentID)
	}
	if selector.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("st.class_id = $%d", len(args)+1))
		args = append(args, selector.ClassID)
	}
	if selector.Subject != nil {
		conditions = append(conditions, fmt.Sprintf("sc.subject = $%d", len(args)+1))
		args = append(args, string(*selector.Subject))
	}

	query := scoreViewQuery
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	scores := make([]models.ScoreView, 0)
	if err := r.db.SelectContext(ctx, &scores, query, args...); err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	return scores, nil
}

// Create inserts a score. A repeated (student, exam, subject) triple yields ErrDuplicateScore.
func (r *ScoreRepository) Create(ctx context.Context, score *models.Score) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now

	const query = `INSERT INTO scores (id, student_id, exam_id, subject, score, created_at, updated_at)
        VALUES (:id, :student_id, :exam_id, :subject, :score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, score); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateScore
		}
		return fmt.Errorf("create score: %w", err)
	}
	return nil
}

// Upsert replaces the value of an existing triple or inserts it. The stored row is written back into score.
func (r *ScoreRepository) Upsert(ctx context.Context, score *models.Score) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if score.CreatedAt.IsZero() {
		score.CreatedAt = now
	}
	score.UpdatedAt = now

	const query = `INSERT INTO scores (id, student_id, exam_id, subject, score, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (student_id, exam_id, subject) DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, score.ID, score.StudentID, score.ExamID, score.Subject, score.Score, score.CreatedAt, score.UpdatedAt)
	if err := row.Scan(&score.ID, &score.CreatedAt); err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	return nil
}
