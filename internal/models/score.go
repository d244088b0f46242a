package models

import (
	"fmt"
	"strings"
	"time"
)

// Subject is the closed set of examined subjects.
type Subject string

const (
	SubjectChinese Subject = "CHINESE"
	SubjectMath    Subject = "MATH"
	SubjectEnglish Subject = "ENGLISH"
)

// Subjects lists every supported subject in report order.
var Subjects = []Subject{SubjectChinese, SubjectMath, SubjectEnglish}

var subjectAliases = map[string]Subject{
	"CHINESE": SubjectChinese,
	"MATH":    SubjectMath,
	"ENGLISH": SubjectEnglish,
	"语文":      SubjectChinese,
	"数学":      SubjectMath,
	"英语":      SubjectEnglish,
}

// ParseSubject resolves a subject code or localized alias.
func ParseSubject(raw string) (Subject, bool) {
	s, ok := subjectAliases[strings.ToUpper(strings.TrimSpace(raw))]
	return s, ok
}

// Valid reports whether s is part of the closed enumeration.
func (s Subject) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in Subjects, or -1.
func (s Subject) Index() int {
	for i, subject := range Subjects {
		if subject == s {
			return i
		}
	}
	return -1
}

const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Score is a single (student, exam, subject) result. It is replaced wholesale on correction.
type Score struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ExamID    string    `db:"exam_id" json:"exam_id"`
	Subject   Subject   `db:"subject" json:"subject"`
	Score     float64   `db:"score" json:"score"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ScoreView is a score joined with its exam and student.
type ScoreView struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	ClassID     string    `db:"class_id" json:"class_id"`
	ExamID      string    `db:"exam_id" json:"exam_id"`
	ExamName    string    `db:"exam_name" json:"exam_name"`
	ExamDate    time.Time `db:"exam_date" json:"exam_date"`
	Subject     Subject   `db:"subject" json:"subject"`
	Score       float64   `db:"score" json:"score"`
}

// Key returns the (exam, subject) group the score belongs to.
func (v ScoreView) Key() ExamSubjectKey {
	return ExamSubjectKey{ExamID: v.ExamID, Subject: v.Subject}
}

// ScoreSelector picks the scores of exactly one student or one class.
type ScoreSelector struct {
	StudentID string
	ClassID   string
	Subject   *Subject
}

// ExamSubjectKey groups scores by exam and subject.
type ExamSubjectKey struct {
	ExamID  string
	Subject Subject
}

func (k ExamSubjectKey) String() string {
	return k.ExamID + "-" + string(k.Subject)
}

// MarshalText renders the key as "examId-SUBJECT" for JSON object keys.
func (k ExamSubjectKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses "examId-SUBJECT". Exam IDs may contain dashes; subjects never do.
func (k *ExamSubjectKey) UnmarshalText(text []byte) error {
	raw := string(text)
	idx := strings.LastIndex(raw, "-")
	if idx <= 0 || idx == len(raw)-1 {
		return fmt.Errorf("invalid exam subject key %q", raw)
	}
	subject := Subject(raw[idx+1:])
	if !subject.Valid() {
		return fmt.Errorf("invalid subject in key %q", raw)
	}
	k.ExamID = raw[:idx]
	k.Subject = subject
	return nil
}

// ScoreBucket indexes the fixed distribution ranges.
type ScoreBucket int

const (
	BucketBelow60 ScoreBucket = iota
	Bucket60To69
	Bucket70To79
	Bucket80To89
	Bucket90To100
)

// BucketCount is the number of distribution ranges.
const BucketCount = 5

var bucketLabels = [BucketCount]string{"0-59", "60-69", "70-79", "80-89", "90-100"}

// BucketFor places a score; ranges are closed low and open high except the last.
func BucketFor(score float64) ScoreBucket {
	switch {
	case score < 60:
		return BucketBelow60
	case score < 70:
		return Bucket60To69
	case score < 80:
		return Bucket70To79
	case score < 90:
		return Bucket80To89
	default:
		return Bucket90To100
	}
}

// Label is the human readable range.
func (b ScoreBucket) Label() string {
	if b < 0 || int(b) >= BucketCount {
		return ""
	}
	return bucketLabels[b]
}

// Distribution counts scores per bucket in bucket order.
type Distribution [BucketCount]int

// Total returns the number of scores counted.
func (d Distribution) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}
