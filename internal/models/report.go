package models

// ReportRow is one row of the flattened enrollment report view. Score is nil
// for enrollments without a recorded grade; professor and department are nil
// when unassigned.
type ReportRow struct {
	ID           int64    `db:"id" json:"id"`
	UniversityID string   `db:"university_id" json:"university_id"`
	DepartmentID *string  `db:"department_id" json:"department_id,omitempty"`
	ProfessorID  *string  `db:"professor_id" json:"professor_id,omitempty"`
	StudentID    string   `db:"student_id" json:"student_id"`
	SubjectID    string   `db:"subject_id" json:"subject_id"`
	EnrollmentID string   `db:"enrollment_id" json:"enrollment_id"`
	Code         string   `db:"code" json:"code"`
	Score        *float64 `db:"score" json:"score,omitempty"`
}

// ReportFilter narrows report view queries.
type ReportFilter struct {
	UniversityID string
	DepartmentID string
	ProfessorID  string
	SubjectID    string
	StudentID    string
}

// ScoreAverage is an averaged score for one grouping dimension value.
type ScoreAverage struct {
	Dimension    string  `json:"dimension"`
	DimensionID  string  `db:"dimension_id" json:"dimension_id"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	GradedCount  int     `db:"graded_count" json:"graded_count"`
}
