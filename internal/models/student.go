package models

import "time"

// Student is a person enrolled at a university. AccountID links the student to
// a portal account; the link is best effort and may stay empty.
type Student struct {
	ID              string    `db:"id" json:"id"`
	UniversityID    string    `db:"university_id" json:"university_id"`
	Name            string    `db:"name" json:"name"`
	Email           *string   `db:"email" json:"email,omitempty"`
	Street          *string   `db:"street" json:"street,omitempty"`
	City            *string   `db:"city" json:"city,omitempty"`
	State           *string   `db:"state" json:"state,omitempty"`
	ZipCode         *string   `db:"zip_code" json:"zip_code,omitempty"`
	Country         *string   `db:"country" json:"country,omitempty"`
	TutorID         *string   `db:"tutor_id" json:"tutor_id,omitempty"`
	AccountID       *string   `db:"account_id" json:"account_id,omitempty"`
	ReportPending   bool      `db:"report_pending" json:"report_pending"`
	LastReportError *string   `db:"last_report_error" json:"last_report_error,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// StudentDetail enriches Student with rollup counts.
type StudentDetail struct {
	Student
	EnrollmentCount int `json:"enrollment_count"`
	GradeCount      int `json:"grade_count"`
}

// SubjectSummary is one line of a student's per-subject academic summary.
type SubjectSummary struct {
	SubjectID     string   `db:"subject_id" json:"subject_id"`
	SubjectName   string   `db:"subject_name" json:"subject_name"`
	ProfessorName *string  `db:"professor_name" json:"professor_name,omitempty"`
	AverageScore  *float64 `db:"average_score" json:"average_score,omitempty"`
}
