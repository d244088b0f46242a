package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

type fakeStore struct {
	students   map[string]models.StudentDetail
	classes    map[string]models.ClassDetail
	scores     []models.ScoreView
	fetchErr   error
	fetchCalls int
	lastFetch  models.ScoreSelector
}

func (f *fakeStore) FindStudent(_ context.Context, id string) (*models.StudentDetail, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (f *fakeStore) FindClass(_ context.Context, id string) (*models.ClassDetail, error) {
	c, ok := f.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeStore) FetchScores(_ context.Context, selector models.ScoreSelector) ([]models.ScoreView, error) {
	f.fetchCalls++
	f.lastFetch = selector
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]models.ScoreView, 0)
	for _, s := range f.scores {
		if selector.ClassID != "" && s.ClassID != selector.ClassID {
			continue
		}
		if selector.StudentID != "" && s.StudentID != selector.StudentID {
			continue
		}
		if selector.Subject != nil && s.Subject != *selector.Subject {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

var (
	midterm = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	final   = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

func view(id, student, exam string, date time.Time, subject models.Subject, score float64) models.ScoreView {
	return models.ScoreView{
		ID:          id,
		StudentID:   student,
		StudentName: "name-" + student,
		ClassID:     "c1",
		ExamID:      exam,
		ExamName:    "exam " + exam,
		ExamDate:    date,
		Subject:     subject,
		Score:       score,
	}
}

func newFixtureStore(scores ...models.ScoreView) *fakeStore {
	return &fakeStore{
		students: map[string]models.StudentDetail{
			"s1": {Student: models.Student{ID: "s1", Name: "Ana", ClassID: "c1"}, ClassName: "Class 1"},
			"s2": {Student: models.Student{ID: "s2", Name: "Budi", ClassID: "c1"}, ClassName: "Class 1"},
			"s3": {Student: models.Student{ID: "s3", Name: "Citra", ClassID: "c1"}, ClassName: "Class 1"},
		},
		classes: map[string]models.ClassDetail{
			"c1": {ClassGroup: models.ClassGroup{ID: "c1", Name: "Class 1"}, StudentCount: 3},
		},
		scores: scores,
	}
}

func subjectPtr(s models.Subject) *models.Subject { return &s }

func TestStudentReportRanksAgainstClass(t *testing.T) {
	store := newFixtureStore(
		view("a", "s1", "e1", midterm, models.SubjectMath, 80),
		view("b", "s2", "e1", midterm, models.SubjectMath, 90),
		view("c", "s3", "e1", midterm, models.SubjectMath, 70),
	)
	engine := NewEngine(store, zap.NewNop())

	report, err := engine.GetStudentReport(context.Background(), "s1", nil)
	require.NoError(t, err)

	require.Len(t, report.Rankings, 1)
	assert.Equal(t, 2, report.Rankings[0].Rank)
	assert.Equal(t, 3, report.Rankings[0].TotalStudents)
	assert.Nil(t, report.Rankings[0].RankChange)
	assert.Equal(t, map[models.Subject]float64{models.SubjectMath: 80}, report.SubjectAverages)
	assert.Equal(t, 1, report.TotalExams)
	assert.Equal(t, "Class 1", report.Class.Name)
	assert.Equal(t, 1, store.fetchCalls)
	assert.Equal(t, "c1", store.lastFetch.ClassID)
}

func TestStudentReportRankChange(t *testing.T) {
	store := newFixtureStore(
		view("a", "s1", "e2", final, models.SubjectMath, 95),
		view("b", "s2", "e2", final, models.SubjectMath, 85),
		view("c", "s1", "e1", midterm, models.SubjectMath, 60),
		view("d", "s2", "e1", midterm, models.SubjectMath, 75),
	)
	engine := NewEngine(store, nil)

	report, err := engine.GetStudentReport(context.Background(), "s1", nil)
	require.NoError(t, err)

	require.Len(t, report.ScoreHistory, 2)
	assert.Equal(t, "e1", report.ScoreHistory[0].ExamID)
	assert.Equal(t, "e2", report.ScoreHistory[1].ExamID)

	require.Len(t, report.Rankings, 2)
	assert.Equal(t, 2, report.Rankings[0].Rank)
	assert.Nil(t, report.Rankings[0].RankChange)
	assert.Equal(t, 1, report.Rankings[1].Rank)
	require.NotNil(t, report.Rankings[1].RankChange)
	assert.Equal(t, 1, *report.Rankings[1].RankChange)
	assert.Equal(t, 77.5, report.SubjectAverages[models.SubjectMath])
}

func TestStudentReportWithoutScores(t *testing.T) {
	store := newFixtureStore(view("b", "s2", "e1", midterm, models.SubjectMath, 90))
	engine := NewEngine(store, nil)

	report, err := engine.GetStudentReport(context.Background(), "s1", nil)
	require.NoError(t, err)

	assert.NotNil(t, report.ScoreHistory)
	assert.Empty(t, report.ScoreHistory)
	assert.NotNil(t, report.Rankings)
	assert.Empty(t, report.Rankings)
	assert.NotNil(t, report.SubjectAverages)
	assert.Empty(t, report.SubjectAverages)
	assert.Equal(t, 0, report.TotalExams)

	payload, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"score_history":[]`)
	assert.Contains(t, string(payload), `"subject_averages":{}`)
}

func TestStudentReportSubjectFilter(t *testing.T) {
	store := newFixtureStore(
		view("a", "s1", "e1", midterm, models.SubjectMath, 80),
		view("b", "s1", "e1", midterm, models.SubjectEnglish, 70),
		view("c", "s2", "e1", midterm, models.SubjectEnglish, 90),
	)
	engine := NewEngine(store, nil)

	report, err := engine.GetStudentReport(context.Background(), "s1", subjectPtr(models.SubjectEnglish))
	require.NoError(t, err)

	require.Len(t, report.ScoreHistory, 1)
	assert.Equal(t, models.SubjectEnglish, report.ScoreHistory[0].Subject)
	assert.Equal(t, 2, report.Rankings[0].Rank)
	assert.NotContains(t, report.SubjectAverages, models.SubjectMath)
	require.NotNil(t, report.SubjectFilter)
	assert.Equal(t, models.SubjectEnglish, *report.SubjectFilter)
}

func TestClassReportAggregates(t *testing.T) {
	store := newFixtureStore(
		view("a", "s1", "e1", midterm, models.SubjectChinese, 59.5),
		view("b", "s2", "e1", midterm, models.SubjectChinese, 60),
		view("c", "s3", "e1", midterm, models.SubjectChinese, 100),
		view("d", "s1", "e2", final, models.SubjectChinese, 90),
	)
	engine := NewEngine(store, nil)

	report, err := engine.GetClassReport(context.Background(), "c1", nil)
	require.NoError(t, err)

	key := models.ExamSubjectKey{ExamID: "e1", Subject: models.SubjectChinese}
	assert.Equal(t, models.Distribution{1, 1, 0, 0, 1}, report.ScoreDistribution[key])
	assert.Equal(t, 73.17, report.ExamSubjectAverages["e1"][models.SubjectChinese])
	assert.Equal(t, 90.0, report.ExamSubjectAverages["e2"][models.SubjectChinese])

	stats := report.SubjectStats[models.SubjectChinese]
	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 100.0, stats.Max)
	assert.Equal(t, 59.5, stats.Min)
	assert.Equal(t, 77.38, stats.Average)

	require.Len(t, report.Exams, 2)
	assert.Equal(t, "e2", report.Exams[0].ID)
	assert.Equal(t, "e1", report.Exams[1].ID)
	assert.Equal(t, 3, report.TotalStudents)
	assert.Equal(t, 4, report.TotalScores)

	board := report.Leaderboards[key]
	require.Len(t, board, 3)
	assert.Equal(t, "s3", board[0].StudentID)
	assert.Equal(t, "s1", board[2].StudentID)
}

func TestClassReportEmptyClass(t *testing.T) {
	store := newFixtureStore()
	engine := NewEngine(store, nil)

	report, err := engine.GetClassReport(context.Background(), "c1", nil)
	require.NoError(t, err)

	assert.Empty(t, report.Exams)
	assert.NotNil(t, report.Exams)
	assert.Empty(t, report.ScoreDistribution)
	assert.Empty(t, report.SubjectStats)
	assert.Equal(t, 0, report.TotalScores)
	assert.Equal(t, 3, report.TotalStudents)
}

func TestClassReportDistributionSumsToGroupSize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var scores []models.ScoreView
	for i := 0; i < 40; i++ {
		student := string(rune('a'+i%26)) + string(rune('a'+i/26))
		scores = append(scores, view(student+"m", student, "e1", midterm, models.SubjectMath, float64(rng.Intn(101))))
	}
	engine := NewEngine(newFixtureStore(scores...), nil)

	report, err := engine.GetClassReport(context.Background(), "c1", nil)
	require.NoError(t, err)

	key := models.ExamSubjectKey{ExamID: "e1", Subject: models.SubjectMath}
	assert.Equal(t, 40, report.ScoreDistribution[key].Total())

	sum := 0
	for _, row := range report.Leaderboards[key] {
		sum += row.Rank
	}
	assert.Equal(t, 40*41/2, sum)
}

func TestTiedScoresRankByStudentID(t *testing.T) {
	store := newFixtureStore(
		view("a", "s1", "e1", midterm, models.SubjectMath, 90),
		view("b", "s2", "e1", midterm, models.SubjectMath, 90),
		view("c", "s3", "e1", midterm, models.SubjectMath, 70),
	)
	engine := NewEngine(store, nil)

	for id, want := range map[string]int{"s1": 1, "s2": 2, "s3": 3} {
		report, err := engine.GetStudentReport(context.Background(), id, nil)
		require.NoError(t, err)
		require.Len(t, report.Rankings, 1, id)
		assert.Equal(t, want, report.Rankings[0].Rank, id)
		assert.Equal(t, 3, report.Rankings[0].TotalStudents, id)
	}

	class, err := engine.GetClassReport(context.Background(), "c1", nil)
	require.NoError(t, err)
	key := models.ExamSubjectKey{ExamID: "e1", Subject: models.SubjectMath}
	assert.Equal(t, models.Distribution{0, 0, 1, 0, 2}, class.ScoreDistribution[key])
	assert.Equal(t, 83.33, class.ExamSubjectAverages["e1"][models.SubjectMath])
}

func TestStudentAverageAcrossExams(t *testing.T) {
	store := newFixtureStore(
		view("a", "s1", "e1", midterm, models.SubjectMath, 88),
		view("b", "s1", "e2", final, models.SubjectMath, 92),
		view("c", "s1", "e3", final.AddDate(0, 1, 0), models.SubjectMath, 100),
	)
	engine := NewEngine(store, nil)

	report, err := engine.GetStudentReport(context.Background(), "s1", nil)
	require.NoError(t, err)

	assert.Equal(t, 93.33, report.SubjectAverages[models.SubjectMath])
	assert.Equal(t, 3, report.TotalExams)
	require.Len(t, report.Rankings, 3)
	for _, r := range report.Rankings {
		assert.Equal(t, 1, r.Rank)
	}
}

func TestTieBreakIndependentOfInputOrder(t *testing.T) {
	scores := []models.ScoreView{
		view("1", "s3", "e1", midterm, models.SubjectMath, 88),
		view("2", "s1", "e1", midterm, models.SubjectMath, 88),
		view("3", "s2", "e1", midterm, models.SubjectMath, 88),
		view("4", "s4", "e1", midterm, models.SubjectMath, 99),
	}
	key := models.ExamSubjectKey{ExamID: "e1", Subject: models.SubjectMath}

	var first []byte
	for i := 0; i < 5; i++ {
		shuffled := append([]models.ScoreView(nil), scores...)
		rand.New(rand.NewSource(int64(i))).Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		engine := NewEngine(newFixtureStore(shuffled...), nil)

		report, err := engine.GetClassReport(context.Background(), "c1", nil)
		require.NoError(t, err)

		board := report.Leaderboards[key]
		require.Len(t, board, 4)
		assert.Equal(t, []string{"s4", "s1", "s2", "s3"}, []string{board[0].StudentID, board[1].StudentID, board[2].StudentID, board[3].StudentID})

		payload, err := json.Marshal(report)
		require.NoError(t, err)
		if first == nil {
			first = payload
			continue
		}
		assert.Equal(t, string(first), string(payload))
	}
}

func TestReportsRejectDuplicateScores(t *testing.T) {
	store := newFixtureStore(
		view("a", "s1", "e1", midterm, models.SubjectMath, 80),
		view("b", "s1", "e1", midterm, models.SubjectMath, 81),
	)
	engine := NewEngine(store, nil)

	_, err := engine.GetClassReport(context.Background(), "c1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDataIntegrity)

	_, err = engine.GetStudentReport(context.Background(), "s1", nil)
	assert.ErrorIs(t, err, appErrors.ErrDataIntegrity)
}

func TestReportsRejectOutOfRangeScores(t *testing.T) {
	engine := NewEngine(newFixtureStore(view("a", "s1", "e1", midterm, models.SubjectMath, 100.5)), nil)

	_, err := engine.GetClassReport(context.Background(), "c1", nil)
	assert.ErrorIs(t, err, appErrors.ErrDataIntegrity)
}

func TestReportsNotFound(t *testing.T) {
	engine := NewEngine(newFixtureStore(), nil)

	_, err := engine.GetStudentReport(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = engine.GetClassReport(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReportsInvalidSelector(t *testing.T) {
	engine := NewEngine(newFixtureStore(), nil)

	_, err := engine.GetStudentReport(context.Background(), " ", nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidSelector)

	_, err = engine.GetClassReport(context.Background(), "c1", subjectPtr(models.Subject("PHYSICS")))
	assert.ErrorIs(t, err, appErrors.ErrInvalidSelector)
}

func TestReportsFetchFailure(t *testing.T) {
	store := newFixtureStore()
	store.fetchErr = assert.AnError
	engine := NewEngine(store, nil)

	_, err := engine.GetClassReport(context.Background(), "c1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestReportsCancelledContext(t *testing.T) {
	engine := NewEngine(newFixtureStore(view("a", "s1", "e1", midterm, models.SubjectMath, 80)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.GetClassReport(ctx, "c1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
