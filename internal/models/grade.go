package models

import "time"

// Grade stores a score recorded against an enrollment. StudentID is always
// copied from the enrollment at write time, never set independently.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Score        float64   `db:"score" json:"score"`
	RecordedOn   time.Time `db:"recorded_on" json:"recorded_on"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// GradeFilter narrows grade listings.
type GradeFilter struct {
	EnrollmentID string
	StudentID    string
}
