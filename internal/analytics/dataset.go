// Package analytics computes student and class performance reports from a
// snapshot of score records. It holds no state between calls and never writes.
package analytics

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

// RecordStore is the read side of the persistent store consumed by the engine.
// FetchScores carries no ordering guarantee but must not duplicate or drop rows.
type RecordStore interface {
	FindStudent(ctx context.Context, id string) (*models.StudentDetail, error)
	FindClass(ctx context.Context, id string) (*models.ClassDetail, error)
	FetchScores(ctx context.Context, selector models.ScoreSelector) ([]models.ScoreView, error)
}

// Dataset is an immutable, validated snapshot of score views.
type Dataset struct {
	scores []models.ScoreView
}

// ValidateSelector enforces exactly one of student or class and a known subject.
func ValidateSelector(selector models.ScoreSelector) error {
	hasStudent := strings.TrimSpace(selector.StudentID) != ""
	hasClass := strings.TrimSpace(selector.ClassID) != ""
	if hasStudent == hasClass {
		return appErrors.Clone(appErrors.ErrInvalidSelector, "exactly one of student_id or class_id is required")
	}
	if selector.Subject != nil && !selector.Subject.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidSelector, fmt.Sprintf("unknown subject %q", *selector.Subject))
	}
	return nil
}

// NewDataset copies and validates scores. A repeated (student, exam, subject)
// triple or a score outside [0, 100] is a data integrity violation.
func NewDataset(scores []models.ScoreView) (*Dataset, error) {
	seen := make(map[scoreIdentity]struct{}, len(scores))
	copied := make([]models.ScoreView, 0, len(scores))
	for _, s := range scores {
		if !s.Subject.Valid() {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("score %s has unknown subject %q", s.ID, s.Subject))
		}
		if math.IsNaN(s.Score) || s.Score < models.MinScore || s.Score > models.MaxScore {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("score %s out of range: %v", s.ID, s.Score))
		}
		id := scoreIdentity{studentID: s.StudentID, key: s.Key()}
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity,
				fmt.Sprintf("duplicate score for student %s exam %s subject %s", s.StudentID, s.ExamID, s.Subject))
		}
		seen[id] = struct{}{}
		copied = append(copied, s)
	}
	return &Dataset{scores: copied}, nil
}

type scoreIdentity struct {
	studentID string
	key       models.ExamSubjectKey
}

// Scores returns the snapshot. Callers must not modify it.
func (d *Dataset) Scores() []models.ScoreView {
	return d.scores
}

// Len is the number of scores in the snapshot.
func (d *Dataset) Len() int {
	return len(d.scores)
}

// ForStudent returns the scores of one student.
func (d *Dataset) ForStudent(studentID string) []models.ScoreView {
	out := make([]models.ScoreView, 0)
	for _, s := range d.scores {
		if s.StudentID == studentID {
			out = append(out, s)
		}
	}
	return out
}

// Restrict keeps only the scores whose (exam, subject) group is in keys.
func (d *Dataset) Restrict(keys map[models.ExamSubjectKey]struct{}) []models.ScoreView {
	out := make([]models.ScoreView, 0, len(d.scores))
	for _, s := range d.scores {
		if _, ok := keys[s.Key()]; ok {
			out = append(out, s)
		}
	}
	return out
}

func filterSubject(scores []models.ScoreView, subject *models.Subject) []models.ScoreView {
	if subject == nil {
		return scores
	}
	out := make([]models.ScoreView, 0, len(scores))
	for _, s := range scores {
		if s.Subject == *subject {
			out = append(out, s)
		}
	}
	return out
}
