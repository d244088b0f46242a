package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/score-analytics-api/internal/models"
	appErrors "github.com/noah-isme/score-analytics-api/pkg/errors"
)

// Engine assembles analytics reports from a RecordStore snapshot.
type Engine struct {
	store  RecordStore
	logger *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(store RecordStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// GetStudentReport builds the performance report of one student. Ranks are
// computed against the student's class for every exam and subject the student sat.
func (e *Engine) GetStudentReport(ctx context.Context, studentID string, subject *models.Subject) (*models.StudentAnalyticsReport, error) {
	if err := ValidateSelector(models.ScoreSelector{StudentID: studentID, Subject: subject}); err != nil {
		return nil, err
	}

	student, err := e.store.FindStudent(ctx, studentID)
	if err != nil || student == nil {
		return nil, lookupError(err, "student")
	}

	dataset, err := e.load(ctx, models.ScoreSelector{ClassID: student.ClassID, Subject: subject})
	if err != nil {
		return nil, err
	}

	own := dataset.ForStudent(student.ID)
	keys := make(map[models.ExamSubjectKey]struct{}, len(own))
	for _, s := range own {
		keys[s.Key()] = struct{}{}
	}
	peers := dataset.Restrict(keys)

	var (
		averages map[models.Subject]float64
		table    *RankTable
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		averages = AverageBySubject(own)
		return nil
	})
	g.Go(func() error {
		t, err := BuildRankTable(gctx, peers)
		table = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortHistory(own)
	history := make([]models.ScoreHistoryEntry, 0, len(own))
	rankings := make([]models.RankEntry, 0, len(own))
	previous := make(map[models.Subject]int)
	exams := make(map[string]struct{})
	for _, s := range own {
		history = append(history, models.ScoreHistoryEntry{
			ScoreID:  s.ID,
			ExamID:   s.ExamID,
			ExamName: s.ExamName,
			ExamDate: s.ExamDate,
			Subject:  s.Subject,
			Score:    s.Score,
		})
		entry, _ := table.Rank(s.Key(), s.StudentID)
		if prev, ok := previous[s.Subject]; ok {
			change := prev - entry.Rank
			entry.RankChange = &change
		}
		previous[s.Subject] = entry.Rank
		rankings = append(rankings, entry)
		exams[s.ExamID] = struct{}{}
	}

	e.logger.Debug("student report computed",
		zap.String("student_id", student.ID),
		zap.Int("scores", len(own)),
		zap.Int("class_scores", dataset.Len()))

	return &models.StudentAnalyticsReport{
		Student:         *student,
		Class:           models.ClassGroup{ID: student.ClassID, Name: student.ClassName},
		SubjectFilter:   subject,
		ScoreHistory:    history,
		Rankings:        rankings,
		SubjectAverages: averages,
		TotalExams:      len(exams),
	}, nil
}

// GetClassReport builds the performance report of one class.
func (e *Engine) GetClassReport(ctx context.Context, classID string, subject *models.Subject) (*models.ClassAnalyticsReport, error) {
	selector := models.ScoreSelector{ClassID: classID, Subject: subject}
	if err := ValidateSelector(selector); err != nil {
		return nil, err
	}

	class, err := e.store.FindClass(ctx, classID)
	if err != nil || class == nil {
		return nil, lookupError(err, "class")
	}

	dataset, err := e.load(ctx, selector)
	if err != nil {
		return nil, err
	}
	scores := dataset.Scores()

	var (
		averages      map[string]map[models.Subject]float64
		distributions map[models.ExamSubjectKey]models.Distribution
		stats         map[models.Subject]models.SubjectStats
		table         *RankTable
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		averages = AverageByExamSubject(scores)
		distributions = DistributionByExamSubject(scores)
		stats = StatsBySubject(scores)
		return nil
	})
	g.Go(func() error {
		t, err := BuildRankTable(gctx, scores)
		table = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	leaderboards := make(map[models.ExamSubjectKey][]models.RankedScore)
	for _, key := range table.Keys() {
		leaderboards[key] = table.Leaderboard(key)
	}

	e.logger.Debug("class report computed",
		zap.String("class_id", class.ID),
		zap.Int("scores", dataset.Len()),
		zap.Int("groups", len(leaderboards)))

	return &models.ClassAnalyticsReport{
		Class:               class.ClassGroup,
		SubjectFilter:       subject,
		ExamSubjectAverages: averages,
		ScoreDistribution:   distributions,
		SubjectStats:        stats,
		Leaderboards:        leaderboards,
		Exams:               examsByDateDesc(scores),
		TotalStudents:       class.StudentCount,
		TotalScores:         dataset.Len(),
	}, nil
}

func (e *Engine) load(ctx context.Context, selector models.ScoreSelector) (*Dataset, error) {
	scores, err := e.store.FetchScores(ctx, selector)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch scores")
	}
	dataset, err := NewDataset(filterSubject(scores, selector.Subject))
	if err != nil {
		e.logger.Error("score snapshot rejected",
			zap.String("class_id", selector.ClassID),
			zap.String("student_id", selector.StudentID),
			zap.Error(err))
		return nil, err
	}
	return dataset, nil
}

func lookupError(err error, entity string) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) || errors.Is(err, appErrors.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s", entity))
}

// sortHistory orders by exam date, exam ID, then subject order.
func sortHistory(scores []models.ScoreView) {
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if !a.ExamDate.Equal(b.ExamDate) {
			return a.ExamDate.Before(b.ExamDate)
		}
		if a.ExamID != b.ExamID {
			return a.ExamID < b.ExamID
		}
		return a.Subject.Index() < b.Subject.Index()
	})
}

// examsByDateDesc lists distinct exams newest first, ties by ID.
func examsByDateDesc(scores []models.ScoreView) []models.ExamSummary {
	seen := make(map[string]struct{})
	exams := make([]models.ExamSummary, 0)
	for _, s := range scores {
		if _, ok := seen[s.ExamID]; ok {
			continue
		}
		seen[s.ExamID] = struct{}{}
		exams = append(exams, models.ExamSummary{ID: s.ExamID, Name: strings.TrimSpace(s.ExamName), Date: s.ExamDate})
	}
	sort.Slice(exams, func(i, j int) bool {
		if !exams[i].Date.Equal(exams[j].Date) {
			return exams[i].Date.After(exams[j].Date)
		}
		return exams[i].ID < exams[j].ID
	})
	return exams
}
