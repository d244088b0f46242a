package models

import "time"

// Student represents a learner. ClassID is a back-reference to the owning class.
type Student struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ClassID   string    `db:"class_id" json:"class_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail joins the student with the name of its class.
type StudentDetail struct {
	Student
	ClassName string `db:"class_name" json:"class_name"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassID  string
	Search   string
	Page     int
	PageSize int
}
