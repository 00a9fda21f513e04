package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// Relation names a countable child table and the column linking it to its
// parent. Values are declared here so table and column identifiers never come
// from request input.
type Relation struct {
	Table      string
	LinkColumn string
}

// Countable relations used by the rollup endpoints.
var (
	RelDepartmentsByUniversity = Relation{Table: "departments", LinkColumn: "university_id"}
	RelProfessorsByUniversity  = Relation{Table: "professors", LinkColumn: "university_id"}
	RelStudentsByUniversity    = Relation{Table: "students", LinkColumn: "university_id"}
	RelEnrollmentsByUniversity = Relation{Table: "enrollments", LinkColumn: "university_id"}
	RelProfessorsByDepartment  = Relation{Table: "professors", LinkColumn: "department_id"}
	RelSubjectsByDepartment    = Relation{Table: "subjects", LinkColumn: "department_id"}
	RelEnrollmentsByProfessor  = Relation{Table: "enrollments", LinkColumn: "professor_id"}
	RelEnrollmentsBySubject    = Relation{Table: "enrollments", LinkColumn: "subject_id"}
	RelEnrollmentsByStudent    = Relation{Table: "enrollments", LinkColumn: "student_id"}
	RelGradesByStudent         = Relation{Table: "grades", LinkColumn: "student_id"}
)

// StudentSubjectKey identifies one (student, subject) average group.
type StudentSubjectKey struct {
	StudentID string
	SubjectID string
}

// StatsRepository computes per-parent child counts and grouped averages with
// one grouped query per call, never one query per parent.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// BatchCount returns child-row counts keyed by parent id. Parents with zero
// children are omitted; callers default to 0 on lookup. An empty parent set
// returns an empty map without touching the database.
func (r *StatsRepository) BatchCount(ctx context.Context, rel Relation, parentIDs []string) (map[string]int, error) {
	if len(parentIDs) == 0 {
		return map[string]int{}, nil
	}

	placeholders := make([]string, len(parentIDs))
	args := make([]interface{}, len(parentIDs))
	for i, id := range parentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s AS parent_id, COUNT(*) AS child_count FROM %s WHERE %s IN (%s) GROUP BY %s",
		rel.LinkColumn, rel.Table, rel.LinkColumn, strings.Join(placeholders, ","), rel.LinkColumn)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch count %s by %s: %w", rel.Table, rel.LinkColumn, err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(parentIDs))
	for rows.Next() {
		var parentID string
		var count int
		if err := rows.Scan(&parentID, &count); err != nil {
			return nil, fmt.Errorf("scan batch count: %w", err)
		}
		counts[parentID] = count
	}
	return counts, rows.Err()
}

// BatchGroupAverage returns the average grade score per (student, subject)
// pair for the given students, computed in a single grouped query.
func (r *StatsRepository) BatchGroupAverage(ctx context.Context, studentIDs []string) (map[StudentSubjectKey]float64, error) {
	if len(studentIDs) == 0 {
		return map[StudentSubjectKey]float64{}, nil
	}

	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, len(studentIDs))
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT e.student_id, e.subject_id, AVG(g.score) AS average_score
        FROM grades g
        JOIN enrollments e ON e.id = g.enrollment_id
        WHERE e.student_id IN (%s)
        GROUP BY e.student_id, e.subject_id`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch group average: %w", err)
	}
	defer rows.Close()

	averages := make(map[StudentSubjectKey]float64)
	for rows.Next() {
		var studentID, subjectID string
		var avg float64
		if err := rows.Scan(&studentID, &subjectID, &avg); err != nil {
			return nil, fmt.Errorf("scan group average: %w", err)
		}
		averages[StudentSubjectKey{StudentID: studentID, SubjectID: subjectID}] = avg
	}
	return averages, rows.Err()
}

// StudentSubjectSummaries returns one row per subject the student is enrolled
// in, with the teaching professor and the average score. Ungraded enrollments
// appear with a nil average. One query regardless of enrollment count, so the
// report renderer never does its own lookups.
func (r *StatsRepository) StudentSubjectSummaries(ctx context.Context, studentID string) ([]models.SubjectSummary, error) {
	const query = `SELECT e.subject_id, s.name AS subject_name, p.name AS professor_name, AVG(g.score) AS average_score
        FROM enrollments e
        JOIN subjects s ON s.id = e.subject_id
        LEFT JOIN professors p ON p.id = e.professor_id
        LEFT JOIN grades g ON g.enrollment_id = e.id
        WHERE e.student_id = $1
        GROUP BY e.subject_id, s.name, p.name
        ORDER BY s.name`
	var summaries []models.SubjectSummary
	if err := r.db.SelectContext(ctx, &summaries, query, studentID); err != nil {
		return nil, fmt.Errorf("student subject summaries: %w", err)
	}
	return summaries, nil
}
