package analytics

import (
	"math"

	"github.com/noah-isme/score-analytics-api/internal/models"
)

// RoundHalfUp rounds a non-negative value to two decimals, half away from zero.
func RoundHalfUp(v float64) float64 {
	// 1e-9 absorbs binary representation error, e.g. 1.005*100 = 100.49999999999999.
	return math.Floor(v*100+0.5+1e-9) / 100
}

type accumulator struct {
	sum   float64
	count int
	max   float64
	min   float64
}

func (a *accumulator) add(score float64) {
	if a.count == 0 || score > a.max {
		a.max = score
	}
	if a.count == 0 || score < a.min {
		a.min = score
	}
	a.sum += score
	a.count++
}

func (a *accumulator) average() float64 {
	return RoundHalfUp(a.sum / float64(a.count))
}

func accumulateBySubject(scores []models.ScoreView) map[models.Subject]*accumulator {
	acc := make(map[models.Subject]*accumulator)
	for _, s := range scores {
		a, ok := acc[s.Subject]
		if !ok {
			a = &accumulator{}
			acc[s.Subject] = a
		}
		a.add(s.Score)
	}
	return acc
}

// AverageBySubject returns the rounded mean per subject. Subjects without
// scores are omitted.
func AverageBySubject(scores []models.ScoreView) map[models.Subject]float64 {
	out := make(map[models.Subject]float64)
	for subject, a := range accumulateBySubject(scores) {
		out[subject] = a.average()
	}
	return out
}

// StatsBySubject returns mean, extremes and count per subject.
func StatsBySubject(scores []models.ScoreView) map[models.Subject]models.SubjectStats {
	out := make(map[models.Subject]models.SubjectStats)
	for subject, a := range accumulateBySubject(scores) {
		out[subject] = models.SubjectStats{
			Average: a.average(),
			Max:     a.max,
			Min:     a.min,
			Count:   a.count,
		}
	}
	return out
}

// AverageByExamSubject returns the rounded mean per exam and subject, keyed by exam ID.
func AverageByExamSubject(scores []models.ScoreView) map[string]map[models.Subject]float64 {
	acc := make(map[models.ExamSubjectKey]*accumulator)
	for _, s := range scores {
		key := s.Key()
		a, ok := acc[key]
		if !ok {
			a = &accumulator{}
			acc[key] = a
		}
		a.add(s.Score)
	}

	out := make(map[string]map[models.Subject]float64)
	for key, a := range acc {
		bySubject, ok := out[key.ExamID]
		if !ok {
			bySubject = make(map[models.Subject]float64)
			out[key.ExamID] = bySubject
		}
		bySubject[key.Subject] = a.average()
	}
	return out
}

// DistributionByExamSubject counts scores per bucket for each exam and subject.
func DistributionByExamSubject(scores []models.ScoreView) map[models.ExamSubjectKey]models.Distribution {
	out := make(map[models.ExamSubjectKey]models.Distribution)
	for _, s := range scores {
		key := s.Key()
		d := out[key]
		d[models.BucketFor(s.Score)]++
		out[key] = d
	}
	return out
}
