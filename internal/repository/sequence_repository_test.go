package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSequenceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSequenceRepositoryNext(t *testing.T) {
	db, mock, cleanup := newSequenceRepoMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	mock.ExpectQuery("INSERT INTO enrollment_sequences").
		WithArgs("enrollment.subject.s1", "MTH", 2026, 1).
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(1))

	n, err := repo.Next(context.Background(), "enrollment.subject.s1", "MTH", 2026)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepositoryNextRangeReturnsFirstOfBlock(t *testing.T) {
	db, mock, cleanup := newSequenceRepoMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	// Counter was at 7; advancing by 5 lands on 12, so the reserved block
	// starts at 8.
	mock.ExpectQuery("INSERT INTO enrollment_sequences").
		WithArgs("enrollment.subject.s1", "MTH", 2026, 5).
		WillReturnRows(sqlmock.NewRows([]string{"last_number"}).AddRow(12))

	first, err := repo.NextRange(context.Background(), "enrollment.subject.s1", "MTH", 2026, 5)
	require.NoError(t, err)
	assert.Equal(t, 8, first)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceRepositoryNextRangeRejectsNonPositiveCount(t *testing.T) {
	db, mock, cleanup := newSequenceRepoMock(t)
	defer cleanup()
	repo := NewSequenceRepository(db)

	_, err := repo.NextRange(context.Background(), "enrollment.subject.s1", "MTH", 2026, 0)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
