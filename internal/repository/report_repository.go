package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// ReportRepository reads the flattened enrollment report view.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// dimensionColumns maps public dimension names to view columns.
var dimensionColumns = map[string]string{
	"university": "university_id",
	"department": "department_id",
	"professor":  "professor_id",
	"subject":    "subject_id",
	"student":    "student_id",
}

// Rows returns flattened report rows matching the filter. Enrollments without
// grades are included with a NULL score.
func (r *ReportRepository) Rows(ctx context.Context, filter models.ReportFilter) ([]models.ReportRow, error) {
	var conditions []string
	var args []interface{}

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("university_id", filter.UniversityID)
	add("department_id", filter.DepartmentID)
	add("professor_id", filter.ProfessorID)
	add("subject_id", filter.SubjectID)
	add("student_id", filter.StudentID)

	query := `SELECT id, university_id, department_id, professor_id, student_id, subject_id, enrollment_id, code, score
        FROM ` + reportViewName
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY code"

	var rows []models.ReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list report rows: %w", err)
	}
	return rows, nil
}

// ValidDimension reports whether the grouping dimension is recognised.
func ValidDimension(dimension string) bool {
	_, ok := dimensionColumns[dimension]
	return ok
}

// AveragesByDimension aggregates average score per value of the requested
// dimension in one grouped query. Ungraded rows are excluded from the average
// (AVG ignores NULL) but counted rows report how many grades contributed.
func (r *ReportRepository) AveragesByDimension(ctx context.Context, dimension string) ([]models.ScoreAverage, error) {
	column, ok := dimensionColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown report dimension %q", dimension)
	}

	query := fmt.Sprintf(`SELECT %s AS dimension_id, AVG(score) AS average_score, COUNT(score) AS graded_count
        FROM %s
        WHERE %s IS NOT NULL AND score IS NOT NULL
        GROUP BY %s
        ORDER BY average_score DESC`, column, reportViewName, column, column)

	var averages []models.ScoreAverage
	if err := r.db.SelectContext(ctx, &averages, query); err != nil {
		return nil, fmt.Errorf("report averages by %s: %w", dimension, err)
	}
	for i := range averages {
		averages[i].Dimension = dimension
	}
	return averages, nil
}
