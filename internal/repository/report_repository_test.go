package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/models"
)

func newReportRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnsureReportViewDropsThenCreates(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DROP VIEW IF EXISTS enrollment_report_v")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE VIEW enrollment_report_v AS").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureReportView(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRowsIncludeUngradedWithNullScore(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	columns := []string{"id", "university_id", "department_id", "professor_id", "student_id", "subject_id", "enrollment_id", "code", "score"}
	mock.ExpectQuery("SELECT id, university_id, department_id, professor_id, student_id, subject_id, enrollment_id, code, score").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, "u1", "d1", "p1", "st1", "sub1", "e1", "MTH/2026/0001", 88.0).
			AddRow(2, "u1", "d1", nil, "st2", "sub1", "e2", "MTH/2026/0002", nil))

	rows, err := repo.Rows(context.Background(), models.ReportFilter{UniversityID: "u1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].Score)
	assert.InDelta(t, 88.0, *rows[0].Score, 0.001)

	assert.Nil(t, rows[1].Score)
	assert.Nil(t, rows[1].ProfessorID)
	assert.Equal(t, "MTH/2026/0002", rows[1].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAveragesByDimensionRejectsUnknownColumn(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	_, err := repo.AveragesByDimension(context.Background(), "grade; DROP TABLE students")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAveragesByDimension(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery("SELECT subject_id AS dimension_id, AVG\\(score\\) AS average_score, COUNT\\(score\\) AS graded_count").
		WillReturnRows(sqlmock.NewRows([]string{"dimension_id", "average_score", "graded_count"}).
			AddRow("sub1", 84.25, 8).
			AddRow("sub2", 67.0, 3))

	averages, err := repo.AveragesByDimension(context.Background(), "subject")
	require.NoError(t, err)
	require.Len(t, averages, 2)
	assert.Equal(t, "subject", averages[0].Dimension)
	assert.Equal(t, "sub1", averages[0].DimensionID)
	assert.Equal(t, 8, averages[0].GradedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
