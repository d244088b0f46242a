package analytics

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

// RankTable holds every (exam, subject) group sorted once, so per-student
// lookups never re-sort.
type RankTable struct {
	groups map[models.ExamSubjectKey][]models.ScoreView
	ranks  map[models.ExamSubjectKey]map[string]int
}

// ranksBefore orders by score descending, then student ID ascending.
func ranksBefore(a, b models.ScoreView) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.StudentID < b.StudentID
}

// BuildRankTable groups scores by exam and subject and sorts the groups concurrently.
func BuildRankTable(ctx context.Context, scores []models.ScoreView) (*RankTable, error) {
	grouped := make(map[models.ExamSubjectKey][]models.ScoreView)
	for _, s := range scores {
		key := s.Key()
		grouped[key] = append(grouped[key], s)
	}

	keys := make([]models.ExamSubjectKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, key := range keys {
		group := grouped[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sort.Slice(group, func(i, j int) bool { return ranksBefore(group[i], group[j]) })
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranks := make(map[models.ExamSubjectKey]map[string]int, len(grouped))
	for key, group := range grouped {
		byStudent := make(map[string]int, len(group))
		for i, s := range group {
			byStudent[s.StudentID] = i + 1
		}
		ranks[key] = byStudent
	}

	return &RankTable{groups: grouped, ranks: ranks}, nil
}

// Rank returns the student's rank within the group. A student absent from the
// group yields false.
func (t *RankTable) Rank(key models.ExamSubjectKey, studentID string) (models.RankEntry, bool) {
	rank, ok := t.ranks[key][studentID]
	if !ok {
		return models.RankEntry{}, false
	}
	return models.RankEntry{
		ExamID:        key.ExamID,
		Subject:       key.Subject,
		Rank:          rank,
		TotalStudents: len(t.groups[key]),
	}, true
}

// Leaderboard lists the group in rank order.
func (t *RankTable) Leaderboard(key models.ExamSubjectKey) []models.RankedScore {
	group := t.groups[key]
	out := make([]models.RankedScore, 0, len(group))
	for i, s := range group {
		out = append(out, models.RankedScore{
			StudentID:   s.StudentID,
			StudentName: s.StudentName,
			Score:       s.Score,
			Rank:        i + 1,
		})
	}
	return out
}

// Keys returns every group key in the table.
func (t *RankTable) Keys() []models.ExamSubjectKey {
	keys := make([]models.ExamSubjectKey, 0, len(t.groups))
	for key := range t.groups {
		keys = append(keys, key)
	}
	return keys
}
