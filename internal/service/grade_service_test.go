package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/models"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

type mockGrades struct {
	created []models.Grade
}

func (m *mockGrades) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	return nil, nil
}

func (m *mockGrades) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = "gr-1"
	}
	m.created = append(m.created, *grade)
	return nil
}

type mockEnrollmentLookup struct {
	enrollments map[string]models.Enrollment
}

func (m *mockEnrollmentLookup) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func TestCreateGradeCopiesStudentFromEnrollment(t *testing.T) {
	grades := &mockGrades{}
	enrollments := &mockEnrollmentLookup{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "st1", SubjectID: "sub1", Code: "MAT/2026/0001"},
	}}
	svc := NewGradeService(grades, enrollments, nil, nil)

	grade, err := svc.Create(context.Background(), CreateGradeRequest{EnrollmentID: "e1", Score: 87.5})
	require.NoError(t, err)
	assert.Equal(t, "st1", grade.StudentID)
	assert.Equal(t, "e1", grade.EnrollmentID)
	assert.InDelta(t, 87.5, grade.Score, 0.001)
	require.Len(t, grades.created, 1)
}

func TestCreateGradeUnknownEnrollment(t *testing.T) {
	svc := NewGradeService(&mockGrades{}, &mockEnrollmentLookup{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateGradeRequest{EnrollmentID: "ghost", Score: 50})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateGradeRejectsOutOfRangeScore(t *testing.T) {
	svc := NewGradeService(&mockGrades{}, &mockEnrollmentLookup{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateGradeRequest{EnrollmentID: "e1", Score: 150})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
