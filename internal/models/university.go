package models

import "time"

// University is the top-level owner of departments, professors, students and
// enrollments.
type University struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Street    *string   `db:"street" json:"street,omitempty"`
	City      *string   `db:"city" json:"city,omitempty"`
	State     *string   `db:"state" json:"state,omitempty"`
	ZipCode   *string   `db:"zip_code" json:"zip_code,omitempty"`
	Country   *string   `db:"country" json:"country,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UniversityDetail enriches University with rollup counts.
type UniversityDetail struct {
	University
	DepartmentCount int `json:"department_count"`
	ProfessorCount  int `json:"professor_count"`
	StudentCount    int `json:"student_count"`
	EnrollmentCount int `json:"enrollment_count"`
}
