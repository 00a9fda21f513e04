package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatsRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBatchCountEmptyInputSkipsDatabase(t *testing.T) {
	db, mock, cleanup := newStatsRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	counts, err := repo.BatchCount(context.Background(), RelDepartmentsByUniversity, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
	// No query expectations registered: any database touch would fail here.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchCountOneGroupedQuery(t *testing.T) {
	db, mock, cleanup := newStatsRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT university_id AS parent_id, COUNT(*) AS child_count FROM departments WHERE university_id IN ($1,$2,$3) GROUP BY university_id")).
		WithArgs("u1", "u2", "u3").
		WillReturnRows(sqlmock.NewRows([]string{"parent_id", "child_count"}).
			AddRow("u1", 4).
			AddRow("u3", 1))

	counts, err := repo.BatchCount(context.Background(), RelDepartmentsByUniversity, []string{"u1", "u2", "u3"})
	require.NoError(t, err)
	assert.Equal(t, 4, counts["u1"])
	assert.Equal(t, 1, counts["u3"])

	// Parents with no children are absent, so a map lookup defaults to zero.
	_, present := counts["u2"]
	assert.False(t, present)
	assert.Equal(t, 0, counts["u2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchGroupAverage(t *testing.T) {
	db, mock, cleanup := newStatsRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectQuery("SELECT e.student_id, e.subject_id, AVG\\(g.score\\)").
		WithArgs("st1", "st2").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "subject_id", "average_score"}).
			AddRow("st1", "sub1", 85.5).
			AddRow("st2", "sub1", 70.0))

	averages, err := repo.BatchGroupAverage(context.Background(), []string{"st1", "st2"})
	require.NoError(t, err)
	assert.Len(t, averages, 2)
	assert.InDelta(t, 85.5, averages[StudentSubjectKey{StudentID: "st1", SubjectID: "sub1"}], 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentSubjectSummariesKeepsUngradedRows(t *testing.T) {
	db, mock, cleanup := newStatsRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	mock.ExpectQuery("SELECT e.subject_id, s.name AS subject_name, p.name AS professor_name, AVG\\(g.score\\)").
		WithArgs("st1").
		WillReturnRows(sqlmock.NewRows([]string{"subject_id", "subject_name", "professor_name", "average_score"}).
			AddRow("sub1", "Algebra", "Dr. Knight", 91.0).
			AddRow("sub2", "Biology", nil, nil))

	summaries, err := repo.StudentSubjectSummaries(context.Background(), "st1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "Algebra", summaries[0].SubjectName)
	require.NotNil(t, summaries[0].AverageScore)
	assert.InDelta(t, 91.0, *summaries[0].AverageScore, 0.001)

	// No professor assigned and no grades yet: both stay nil, the row survives.
	assert.Equal(t, "Biology", summaries[1].SubjectName)
	assert.Nil(t, summaries[1].ProfessorName)
	assert.Nil(t, summaries[1].AverageScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}
