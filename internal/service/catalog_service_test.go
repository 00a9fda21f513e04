package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/repository"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

type mockDepartments struct {
	departments map[string]models.Department
	affiliated  [][2]string
}

func (m *mockDepartments) List(ctx context.Context, universityID string) ([]models.Department, error) {
	var list []models.Department
	for _, d := range m.departments {
		if universityID == "" || d.UniversityID == universityID {
			list = append(list, d)
		}
	}
	return list, nil
}

func (m *mockDepartments) FindByID(ctx context.Context, id string) (*models.Department, error) {
	if d, ok := m.departments[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDepartments) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = "d-new"
	}
	m.departments[department.ID] = *department
	return nil
}

func (m *mockDepartments) SetManager(ctx context.Context, id string, managerID *string) error {
	return nil
}

func (m *mockDepartments) AddProfessor(ctx context.Context, departmentID, professorID string) error {
	m.affiliated = append(m.affiliated, [2]string{departmentID, professorID})
	return nil
}

type mockProfessorCatalog struct {
	professors map[string]models.Professor
	qualified  [][2]string
}

func (m *mockProfessorCatalog) List(ctx context.Context, universityID, departmentID string) ([]models.Professor, error) {
	var list []models.Professor
	for _, p := range m.professors {
		list = append(list, p)
	}
	return list, nil
}

func (m *mockProfessorCatalog) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	if p, ok := m.professors[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfessorCatalog) Create(ctx context.Context, professor *models.Professor) error {
	if professor.ID == "" {
		professor.ID = "p-new"
	}
	m.professors[professor.ID] = *professor
	return nil
}

func (m *mockProfessorCatalog) AddSubject(ctx context.Context, professorID, subjectID string) error {
	m.qualified = append(m.qualified, [2]string{professorID, subjectID})
	return nil
}

type mockSubjectCatalog struct {
	subjects map[string]models.Subject
}

func (m *mockSubjectCatalog) List(ctx context.Context, universityID, departmentID string) ([]models.Subject, error) {
	var list []models.Subject
	for _, s := range m.subjects {
		list = append(list, s)
	}
	return list, nil
}

func (m *mockSubjectCatalog) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubjectCatalog) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = "sub-new"
	}
	m.subjects[subject.ID] = *subject
	return nil
}

type countingStats struct {
	calls     []repository.Relation
	idsPerCal [][]string
	counts    map[string]int
}

func (m *countingStats) BatchCount(ctx context.Context, rel repository.Relation, parentIDs []string) (map[string]int, error) {
	m.calls = append(m.calls, rel)
	m.idsPerCal = append(m.idsPerCal, parentIDs)
	return m.counts, nil
}

func newCatalogFixture() (*CatalogService, *mockDepartments, *mockProfessorCatalog, *mockSubjectCatalog, *countingStats) {
	universities := &mockUniversityStore{universities: map[string]models.University{
		"u1": {ID: "u1", Name: "Tech University"},
		"u2": {ID: "u2", Name: "Arts University"},
	}}
	departments := &mockDepartments{departments: map[string]models.Department{
		"d1": {ID: "d1", UniversityID: "u1", Name: "Engineering"},
	}}
	professors := &mockProfessorCatalog{professors: map[string]models.Professor{}}
	subjects := &mockSubjectCatalog{subjects: map[string]models.Subject{}}
	stats := &countingStats{counts: map[string]int{}}
	svc := NewCatalogService(universities, departments, professors, subjects, stats, nil, nil)
	return svc, departments, professors, subjects, stats
}

func TestListUniversitiesBatchesCounts(t *testing.T) {
	svc, _, _, _, stats := newCatalogFixture()
	stats.counts = map[string]int{"u1": 5}

	details, err := svc.ListUniversities(context.Background())
	require.NoError(t, err)
	assert.Len(t, details, 2)

	// Four rollup relations, one grouped call each, regardless of list size.
	assert.Len(t, stats.calls, 4)
	for _, ids := range stats.idsPerCal {
		assert.Len(t, ids, 2)
	}
}

func TestCreateProfessorAffiliatesDepartment(t *testing.T) {
	svc, departments, professors, _, _ := newCatalogFixture()

	professor, err := svc.CreateProfessor(context.Background(), CreateProfessorRequest{
		UniversityID: "u1",
		DepartmentID: "d1",
		Name:         "Dr. Knight",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, professor.ID)
	require.Len(t, departments.affiliated, 1)
	assert.Equal(t, [2]string{"d1", professor.ID}, departments.affiliated[0])
	assert.Contains(t, professors.professors, professor.ID)
}

func TestCreateProfessorRejectsForeignDepartment(t *testing.T) {
	svc, _, _, _, _ := newCatalogFixture()

	_, err := svc.CreateProfessor(context.Background(), CreateProfessorRequest{
		UniversityID: "u2",
		DepartmentID: "d1",
		Name:         "Dr. Knight",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateSubjectDerivesUniversityFromDepartment(t *testing.T) {
	svc, _, _, _, _ := newCatalogFixture()

	subject, err := svc.CreateSubject(context.Background(), CreateSubjectRequest{
		DepartmentID: "d1",
		Name:         "Mathematics",
		Code:         "MATH101",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", subject.UniversityID)
}

func TestAssignSubjectQualifiesProfessor(t *testing.T) {
	svc, _, professors, subjects, _ := newCatalogFixture()
	professors.professors["p1"] = models.Professor{ID: "p1", UniversityID: "u1"}
	subjects.subjects["sub1"] = models.Subject{ID: "sub1", UniversityID: "u1", Name: "Mathematics"}

	require.NoError(t, svc.AssignSubject(context.Background(), "p1", "sub1"))
	require.Len(t, professors.qualified, 1)
	assert.Equal(t, [2]string{"p1", "sub1"}, professors.qualified[0])
}

func TestCreateDepartmentUnknownUniversity(t *testing.T) {
	svc, _, _, _, _ := newCatalogFixture()

	_, err := svc.CreateDepartment(context.Background(), CreateDepartmentRequest{UniversityID: "ghost", Name: "History"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
