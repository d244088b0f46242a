package models

import "time"

// Exam is a dated sitting. Several exams may share a name.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Date      time.Time `db:"exam_date" json:"date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ExamSummary is the identity portion of an exam embedded in reports.
type ExamSummary struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}
