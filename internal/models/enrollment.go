package models

import "time"

// Enrollment links a student to a subject. Code is assigned exactly once at
// creation and never changes afterwards.
type Enrollment struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	StudentID    string    `db:"student_id" json:"student_id"`
	UniversityID string    `db:"university_id" json:"university_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	ProfessorID  *string   `db:"professor_id" json:"professor_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with display names.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string  `db:"student_name" json:"student_name"`
	SubjectName   string  `db:"subject_name" json:"subject_name"`
	ProfessorName *string `db:"professor_name" json:"professor_name,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID    string
	SubjectID    string
	UniversityID string
	ProfessorID  string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
