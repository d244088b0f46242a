package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/score-analytics-api/internal/analytics"
	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

func newRosterFixture() (*RosterService, *memoryRoster) {
	roster := newMemoryRoster()
	return NewRosterService(memoryClasses{roster}, memoryStudents{roster}, memoryExams{roster}, nil, nil, nil, nil), roster
}

func TestRosterServiceClasses(t *testing.T) {
	svc, _ := newRosterFixture()
	ctx := context.Background()

	class, err := svc.CreateClass(ctx, CreateClassRequest{Name: "  Class 1 "})
	require.NoError(t, err)
	assert.Equal(t, "Class 1", class.Name)

	_, err = svc.CreateClass(ctx, CreateClassRequest{Name: "Class 1"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.CreateClass(ctx, CreateClassRequest{Name: "   "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	detail, err := svc.GetClass(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.StudentCount)

	_, err = svc.GetClass(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRosterServiceStudents(t *testing.T) {
	svc, _ := newRosterFixture()
	ctx := context.Background()
	class, err := svc.CreateClass(ctx, CreateClassRequest{Name: "Class 1"})
	require.NoError(t, err)

	student, err := svc.CreateStudent(ctx, CreateStudentRequest{Name: "Ana", ClassID: class.ID})
	require.NoError(t, err)

	_, err = svc.CreateStudent(ctx, CreateStudentRequest{Name: "Ana", ClassID: class.ID})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.CreateStudent(ctx, CreateStudentRequest{Name: "Budi", ClassID: "missing"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	detail, err := svc.GetStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Class 1", detail.ClassName)

	students, page, err := svc.ListStudents(ctx, models.StudentFilter{ClassID: class.ID, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, page)
}

func TestRosterServiceExams(t *testing.T) {
	svc, _ := newRosterFixture()
	ctx := context.Background()

	exam, err := svc.CreateExam(ctx, CreateExamRequest{Name: "Midterm", Date: "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), exam.Date)

	_, err = svc.CreateExam(ctx, CreateExamRequest{Name: "Final", Date: "01/06/2024"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	exams, err := svc.ListExams(ctx)
	require.NoError(t, err)
	assert.Len(t, exams, 1)
}

// memoryRecordStore serves the engine from the in-memory roster.
type memoryRecordStore struct{ *memoryRoster }

func (m memoryRecordStore) FindStudent(ctx context.Context, id string) (*models.StudentDetail, error) {
	return memoryStudents{m.memoryRoster}.FindByID(ctx, id)
}

func (m memoryRecordStore) FindClass(ctx context.Context, id string) (*models.ClassDetail, error) {
	return memoryClasses{m.memoryRoster}.FindByID(ctx, id)
}

func (m memoryRecordStore) FetchScores(ctx context.Context, selector models.ScoreSelector) ([]models.ScoreView, error) {
	return memoryScores{m.memoryRoster}.FetchScores(ctx, selector)
}

func TestRosterServiceEnrolmentRefreshesClassReport(t *testing.T) {
	roster := newMemoryRoster()
	cacheRepo := &stubCacheRepo{}
	reports := NewAnalyticsService(
		analytics.NewEngine(memoryRecordStore{roster}, nil),
		NewCacheService(cacheRepo, nil, nil, CacheOptions{Enabled: true, TTL: time.Minute}),
		nil, nil)
	warmer := &recordingWarmer{}
	svc := NewRosterService(memoryClasses{roster}, memoryStudents{roster}, memoryExams{roster}, reports, warmer, nil, nil)
	ctx := context.Background()

	class, err := svc.CreateClass(ctx, CreateClassRequest{Name: "Class 1"})
	require.NoError(t, err)
	assert.Empty(t, cacheRepo.patterns)
	_, err = svc.CreateStudent(ctx, CreateStudentRequest{Name: "Ana", ClassID: class.ID})
	require.NoError(t, err)

	report, hit, err := reports.ClassReport(ctx, class.ID, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, report.TotalStudents)
	_, hit, err = reports.ClassReport(ctx, class.ID, nil)
	require.NoError(t, err)
	require.True(t, hit)

	_, err = svc.CreateStudent(ctx, CreateStudentRequest{Name: "Budi", ClassID: class.ID})
	require.NoError(t, err)

	report, hit, err = reports.ClassReport(ctx, class.ID, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, report.TotalStudents)
	assert.Equal(t, []string{class.ID, class.ID}, warmer.classes)
}
