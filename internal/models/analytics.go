package models

import "time"

// ScoreHistoryEntry is one scored subject of one exam in a student's history.
type ScoreHistoryEntry struct {
	ScoreID  string    `json:"score_id"`
	ExamID   string    `json:"exam_id"`
	ExamName string    `json:"exam_name"`
	ExamDate time.Time `json:"exam_date"`
	Subject  Subject   `json:"subject"`
	Score    float64   `json:"score"`
}

// RankEntry is a student's class rank for one exam and subject. RankChange is
// the previous rank minus this one for the same subject, nil at the first exam.
type RankEntry struct {
	ExamID        string  `json:"exam_id"`
	Subject       Subject `json:"subject"`
	Rank          int     `json:"rank"`
	TotalStudents int     `json:"total_students"`
	RankChange    *int    `json:"rank_change"`
}

// SubjectStats summarises every score of a subject. Max and Min are unrounded.
type SubjectStats struct {
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Count   int     `json:"count"`
}

// RankedScore is a leaderboard row within an exam and subject.
type RankedScore struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
}

// StudentAnalyticsReport is the derived per-student view.
type StudentAnalyticsReport struct {
	Student         StudentDetail       `json:"student"`
	Class           ClassGroup          `json:"class"`
	SubjectFilter   *Subject            `json:"subject_filter,omitempty"`
	ScoreHistory    []ScoreHistoryEntry `json:"score_history"`
	Rankings        []RankEntry         `json:"rankings"`
	SubjectAverages map[Subject]float64 `json:"subject_averages"`
	TotalExams      int                 `json:"total_exams"`
}

// ClassAnalyticsReport is the derived per-class view.
type ClassAnalyticsReport struct {
	Class               ClassGroup                       `json:"class"`
	SubjectFilter       *Subject                         `json:"subject_filter,omitempty"`
	ExamSubjectAverages map[string]map[Subject]float64   `json:"exam_subject_averages"`
	ScoreDistribution   map[ExamSubjectKey]Distribution  `json:"score_distribution"`
	SubjectStats        map[Subject]SubjectStats         `json:"subject_stats"`
	Leaderboards        map[ExamSubjectKey][]RankedScore `json:"leaderboards"`
	Exams               []ExamSummary                    `json:"exams"`
	TotalStudents       int                              `json:"total_students"`
	TotalScores         int                              `json:"total_scores"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	ReportsComputed          uint64    `json:"reports_computed"`
	AverageComputeDurationMs float64   `json:"average_compute_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
