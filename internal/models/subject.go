package models

import "time"

// Subject is a course of study offered by a department. UniversityID is
// denormalized from the department for query performance.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	UniversityID string    `db:"university_id" json:"university_id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SubjectDetail enriches Subject with rollup counts.
type SubjectDetail struct {
	Subject
	EnrollmentCount int `json:"enrollment_count"`
}
