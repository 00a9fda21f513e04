package models

import "time"

// Department organises professors and subjects within a university.
type Department struct {
	ID           string    `db:"id" json:"id"`
	UniversityID string    `db:"university_id" json:"university_id"`
	Name         string    `db:"name" json:"name"`
	ManagerID    *string   `db:"manager_id" json:"manager_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// DepartmentDetail enriches Department with rollup counts.
type DepartmentDetail struct {
	Department
	ProfessorCount int `json:"professor_count"`
	SubjectCount   int `json:"subject_count"`
}
