package repository

import (
	"context"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

// RecordStore exposes the read paths the analytics engine consumes.
type RecordStore struct {
	students *StudentRepository
	classes  *ClassRepository
	scores   *ScoreRepository
}

// NewRecordStore combines the roster and score repositories.
func NewRecordStore(students *StudentRepository, classes *ClassRepository, scores *ScoreRepository) *RecordStore {
	return &RecordStore{students: students, classes: classes, scores: scores}
}

// FindStudent returns the student with its class name. Missing rows surface as sql.ErrNoRows.
func (s *RecordStore) FindStudent(ctx context.Context, id string) (*models.StudentDetail, error) {
	return s.students.FindByID(ctx, id)
}

// FindClass returns the class with its roster size.
func (s *RecordStore) FindClass(ctx context.Context, id string) (*models.ClassDetail, error) {
	return s.classes.FindByID(ctx, id)
}

// FetchScores delegates to the score repository.
func (s *RecordStore) FetchScores(ctx context.Context, selector models.ScoreSelector) ([]models.ScoreView, error) {
	return s.scores.FetchScores(ctx, selector)
}
