package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

const classDetailColumns = `c.id, c.name, c.created_at, c.updated_at,
        (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id) AS student_count`

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns every class ordered by name together with its roster size.
func (r *ClassRepository) List(ctx context.Context) ([]models.ClassDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM classes c ORDER BY c.name ASC", classDetailColumns)
	classes := make([]models.ClassDetail, 0)
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class with its roster size.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM classes c WHERE c.id = $1", classDetailColumns)
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByName returns the class with an exact name match.
func (r *ClassRepository) FindByName(ctx context.Context, name string) (*models.ClassGroup, error) {
	const query = `SELECT id, name, created_at, updated_at FROM classes WHERE name = $1 LIMIT 1`
	var class models.ClassGroup
	if err := r.db.GetContext(ctx, &class, query, name); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.ClassGroup) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, created_at, updated_at) VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}
