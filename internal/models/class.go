package models

import "time"

// ClassGroup is a named class; names are unique across the system.
type ClassGroup struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends ClassGroup with its current roster size.
type ClassDetail struct {
	ClassGroup
	StudentCount int `db:"student_count" json:"student_count"`
}
