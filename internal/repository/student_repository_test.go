package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryLinkAccountByEmail(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET account_id = $1 WHERE email = $2 AND account_id IS NULL")).
		WithArgs("acc1", "ana@example.com").
		WillReturnResult(sqlmock.NewResult(0, 2))

	linked, err := repo.LinkAccountByEmail(context.Background(), "acc1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), linked)

	// Second run: everything already linked, nothing touched.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET account_id = $1 WHERE email = $2 AND account_id IS NULL")).
		WithArgs("acc1", "ana@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	linked, err = repo.LinkAccountByEmail(context.Background(), "acc1", "ana@example.com")
	require.NoError(t, err)
	assert.Zero(t, linked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListReportPending(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	columns := []string{"id", "university_id", "name", "email", "street", "city", "state", "zip_code", "country",
		"tutor_id", "account_id", "report_pending", "last_report_error", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM students WHERE report_pending = TRUE ORDER BY created_at ASC LIMIT \\$1").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("st1", "u1", "Ana", "ana@example.com", nil, nil, nil, nil, nil, nil, nil, true, nil, time.Now()))

	students, err := repo.ListReportPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.True(t, students[0].ReportPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySetReportPending(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET report_pending = $2 WHERE id = $1")).
		WithArgs("st1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetReportPending(context.Background(), "st1", false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
