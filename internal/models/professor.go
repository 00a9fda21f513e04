package models

import "time"

// Professor is an academic staff member teaching subjects.
type Professor struct {
	ID           string    `db:"id" json:"id"`
	UniversityID string    `db:"university_id" json:"university_id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	Email        *string   `db:"email" json:"email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ProfessorDetail enriches Professor with rollup counts.
type ProfessorDetail struct {
	Professor
	EnrollmentCount int `json:"enrollment_count"`
}
