package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// reportViewName is the derived, read-only flattened projection over
// enrollments. It is dropped and recreated on startup so schema changes to the
// defining query always take effect; the view is never a source of truth.
const reportViewName = "enrollment_report_v"

const reportViewDDL = `CREATE VIEW ` + reportViewName + ` AS
SELECT
    row_number() OVER () AS id,
    e.university_id,
    p.department_id,
    e.professor_id,
    e.student_id,
    e.subject_id,
    e.id AS enrollment_id,
    e.code,
    g.score
FROM enrollments e
JOIN students st ON st.id = e.student_id
JOIN subjects sub ON sub.id = e.subject_id
LEFT JOIN professors p ON p.id = e.professor_id
LEFT JOIN grades g ON g.enrollment_id = e.id`

// EnsureReportView drops and recreates the flattened report view. Grades,
// professors and departments are outer joins: an enrollment without a grade or
// without an assigned professor still yields a row, with NULLs in the missing
// columns.
func EnsureReportView(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP VIEW IF EXISTS %s", reportViewName)); err != nil {
		return fmt.Errorf("drop report view: %w", err)
	}
	if _, err := db.ExecContext(ctx, reportViewDDL); err != nil {
		return fmt.Errorf("create report view: %w", err)
	}
	return nil
}
