package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

func newScoreFixture(t *testing.T) (*ScoreService, *memoryRoster, *recordingInvalidator, *recordingWarmer) {
	t.Helper()
	roster := newMemoryRoster()
	ctx := context.Background()
	class := &models.ClassGroup{Name: "Class 1"}
	require.NoError(t, memoryClasses{roster}.Create(ctx, class))
	require.NoError(t, memoryStudents{roster}.Create(ctx, &models.Student{Name: "Ana", ClassID: class.ID}))
	require.NoError(t, memoryExams{roster}.Create(ctx, &models.Exam{Name: "Midterm", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}))

	invalidator := &recordingInvalidator{}
	warmer := &recordingWarmer{}
	svc := NewScoreService(memoryScores{roster}, memoryStudents{roster}, memoryExams{roster}, invalidator, warmer, nil, nil, nil)
	return svc, roster, invalidator, warmer
}

func floatPtr(v float64) *float64 { return &v }

func TestScoreServiceCreateAndConflict(t *testing.T) {
	svc, _, invalidator, warmer := newScoreFixture(t)
	ctx := context.Background()
	req := ScoreRequest{StudentID: "student-2", ExamID: "exam-3", Subject: "数学", Score: floatPtr(88)}

	score, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.SubjectMath, score.Subject)
	assert.Equal(t, 1, invalidator.calls)
	assert.Equal(t, []string{"class-1"}, warmer.classes)

	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, 1, invalidator.calls)
}

func TestScoreServiceUpsertReplacesValue(t *testing.T) {
	svc, _, _, _ := newScoreFixture(t)
	ctx := context.Background()

	first, err := svc.Upsert(ctx, ScoreRequest{StudentID: "student-2", ExamID: "exam-3", Subject: "MATH", Score: floatPtr(60)})
	require.NoError(t, err)
	second, err := svc.Upsert(ctx, ScoreRequest{StudentID: "student-2", ExamID: "exam-3", Subject: "MATH", Score: floatPtr(75)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	scores, err := svc.List(ctx, models.ScoreSelector{StudentID: "student-2"})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 75.0, scores[0].Score)
}

func TestScoreServiceValidation(t *testing.T) {
	svc, _, _, _ := newScoreFixture(t)
	ctx := context.Background()

	cases := map[string]ScoreRequest{
		"missing score":   {StudentID: "student-2", ExamID: "exam-3", Subject: "MATH"},
		"above range":     {StudentID: "student-2", ExamID: "exam-3", Subject: "MATH", Score: floatPtr(100.5)},
		"below range":     {StudentID: "student-2", ExamID: "exam-3", Subject: "MATH", Score: floatPtr(-1)},
		"unknown subject": {StudentID: "student-2", ExamID: "exam-3", Subject: "PHYSICS", Score: floatPtr(50)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestScoreServiceUnknownReferences(t *testing.T) {
	svc, _, _, _ := newScoreFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ScoreRequest{StudentID: "nobody", ExamID: "exam-3", Subject: "MATH", Score: floatPtr(50)})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Create(ctx, ScoreRequest{StudentID: "student-2", ExamID: "nothing", Subject: "MATH", Score: floatPtr(50)})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestScoreServiceListRequiresOneSelector(t *testing.T) {
	svc, _, _, _ := newScoreFixture(t)

	_, err := svc.List(context.Background(), models.ScoreSelector{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidSelector)

	_, err = svc.List(context.Background(), models.ScoreSelector{StudentID: "a", ClassID: "b"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidSelector)
}
