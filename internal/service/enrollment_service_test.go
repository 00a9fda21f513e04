package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/models"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	existing    map[string]bool
	created     []models.Enrollment
	createErr   error
}

func enrollmentKey(studentID, subjectID string) string {
	return studentID + "|" + subjectID
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, studentID, subjectID string) (bool, error) {
	return m.existing[enrollmentKey(studentID, subjectID)], nil
}

func (m *mockEnrollmentRepo) EnrolledStudentIDs(ctx context.Context, subjectID string, studentIDs []string) (map[string]bool, error) {
	enrolled := make(map[string]bool)
	for _, id := range studentIDs {
		if m.existing[enrollmentKey(id, subjectID)] {
			enrolled[id] = true
		}
	}
	return enrolled, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = fmt.Sprintf("enr-%d", len(m.created)+1)
	}
	m.created = append(m.created, *enrollment)
	return nil
}

func (m *mockEnrollmentRepo) CreateBulk(ctx context.Context, enrollments []models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, enrollments...)
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.enrollments, id)
	return nil
}

// mockSequences mimics the database counter: one atomic advance per call,
// year reset included.
type mockSequences struct {
	mu   sync.Mutex
	last map[string]int
	year map[string]int
}

func newMockSequences() *mockSequences {
	return &mockSequences{last: make(map[string]int), year: make(map[string]int)}
}

func (m *mockSequences) Next(ctx context.Context, key, prefix string, year int) (int, error) {
	return m.NextRange(ctx, key, prefix, year, 1)
}

func (m *mockSequences) NextRange(ctx context.Context, key, prefix string, year, count int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.year[key] != year {
		m.last[key] = 0
		m.year[key] = year
	}
	m.last[key] += count
	return m.last[key] - count + 1, nil
}

type failingSequences struct{}

func (failingSequences) Next(ctx context.Context, key, prefix string, year int) (int, error) {
	return 0, fmt.Errorf("sequence table missing")
}

func (failingSequences) NextRange(ctx context.Context, key, prefix string, year, count int) (int, error) {
	return 0, fmt.Errorf("sequence table missing")
}

type mockStudents struct {
	students map[string]models.Student
}

func (m *mockStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := m.students[id]; ok {
		return &st, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudents) FindByIDs(ctx context.Context, ids []string) (map[string]models.Student, error) {
	found := make(map[string]models.Student)
	for _, id := range ids {
		if st, ok := m.students[id]; ok {
			found[id] = st
		}
	}
	return found, nil
}

type mockSubjects struct {
	subjects map[string]models.Subject
}

func (m *mockSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if sub, ok := m.subjects[id]; ok {
		return &sub, nil
	}
	return nil, sql.ErrNoRows
}

type mockProfessors struct {
	professors map[string]models.Professor
}

func (m *mockProfessors) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	if p, ok := m.professors[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfessors) List(ctx context.Context, universityID, departmentID string) ([]models.Professor, error) {
	var out []models.Professor
	for _, p := range m.professors {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProfessors) Create(ctx context.Context, professor *models.Professor) error {
	if m.professors == nil {
		m.professors = make(map[string]models.Professor)
	}
	m.professors[professor.ID] = *professor
	return nil
}

func (m *mockProfessors) AddSubject(ctx context.Context, professorID, subjectID string) error {
	return nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *mockSequences) {
	repo := &mockEnrollmentRepo{existing: make(map[string]bool), enrollments: make(map[string]models.Enrollment)}
	sequences := newMockSequences()
	students := &mockStudents{students: map[string]models.Student{
		"st1": {ID: "st1", UniversityID: "u1", Name: "Ana"},
		"st2": {ID: "st2", UniversityID: "u1", Name: "Ben"},
		"st3": {ID: "st3", UniversityID: "u2", Name: "Cleo"},
	}}
	subjects := &mockSubjects{subjects: map[string]models.Subject{
		"sub-math": {ID: "sub-math", UniversityID: "u1", DepartmentID: "d1", Name: "Mathematics", Code: "MATH101"},
		"sub-art":  {ID: "sub-art", UniversityID: "u1", DepartmentID: "d1", Name: "Ar", Code: "ART101"},
	}}
	professors := &mockProfessors{professors: map[string]models.Professor{
		"p1": {ID: "p1", UniversityID: "u1", DepartmentID: "d1", Name: "Dr. Knight"},
	}}
	svc := NewEnrollmentService(repo, sequences, students, subjects, professors, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo, sequences
}

func TestEnrollAllocatesSequentialCodes(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	first, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "st1", SubjectID: "sub-math"})
	require.NoError(t, err)
	assert.Equal(t, "MAT/2026/0001", first.Code)

	second, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "st2", SubjectID: "sub-math"})
	require.NoError(t, err)
	assert.Equal(t, "MAT/2026/0002", second.Code)

	assert.Len(t, repo.created, 2)
}

func TestEnrollKeepsCallerSuppliedCode(t *testing.T) {
	svc, _, sequences := newEnrollmentFixture()

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "st1", SubjectID: "sub-math", Code: "LEGACY/0042"})
	require.NoError(t, err)
	assert.Equal(t, "LEGACY/0042", enrollment.Code)

	// The counter must not have advanced for a pre-assigned code.
	assert.Zero(t, sequences.last[sequenceKey("sub-math")])
}

func TestEnrollShortSubjectNamePrefix(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	enrollment, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "st1", SubjectID: "sub-art"})
	require.NoError(t, err)
	// Two-letter names yield a two-letter prefix, no padding.
	assert.Equal(t, "AR/2026/0001", enrollment.Code)
}

func TestEnrollRejectsDuplicate(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	repo.existing[enrollmentKey("st1", "sub-math")] = true

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "st1", SubjectID: "sub-math"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollSurfacesInsertTimeConflict(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	// A racing duplicate passes the pre-check but fails on the unique
	// constraint; the store reports it as a conflict.
	repo.createErr = appErrors.Clone(appErrors.ErrConflict, "student already enrolled in subject")

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "st1", SubjectID: "sub-math"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollRejectsUniversityMismatch(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "st3", SubjectID: "sub-math"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollSequenceFailureIsConfigurationError(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	svc.sequences = failingSequences{}

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "st1", SubjectID: "sub-math"})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConfiguration.Code, appErr.Code)
}

func TestBulkEnrollOneCounterAdvancePerBatch(t *testing.T) {
	svc, repo, sequences := newEnrollmentFixture()

	result, err := svc.BulkEnroll(context.Background(), BulkEnrollRequest{
		SubjectID:  "sub-math",
		StudentIDs: []string{"st1", "st2"},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	assert.Equal(t, "MAT/2026/0001", result.Created[0].Code)
	assert.Equal(t, "MAT/2026/0002", result.Created[1].Code)
	assert.Empty(t, result.Skipped)
	assert.Len(t, repo.created, 2)

	// The whole batch consumed exactly one block of the counter.
	assert.Equal(t, 2, sequences.last[sequenceKey("sub-math")])
}

func TestBulkEnrollSkipsAlreadyEnrolled(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	svc.repo.(*mockEnrollmentRepo).existing[enrollmentKey("st1", "sub-math")] = true

	result, err := svc.BulkEnroll(context.Background(), BulkEnrollRequest{
		SubjectID:  "sub-math",
		StudentIDs: []string{"st1", "st2"},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "st2", result.Created[0].StudentID)
	assert.Equal(t, []string{"st1"}, result.Skipped)
}

func TestBulkEnrollRejectsWhenAllEnrolled(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	repo.existing[enrollmentKey("st1", "sub-math")] = true
	repo.existing[enrollmentKey("st2", "sub-math")] = true

	_, err := svc.BulkEnroll(context.Background(), BulkEnrollRequest{
		SubjectID:  "sub-math",
		StudentIDs: []string{"st1", "st2"},
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestBulkEnrollRejectsUnknownStudent(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.BulkEnroll(context.Background(), BulkEnrollRequest{
		SubjectID:  "sub-math",
		StudentIDs: []string{"st1", "ghost"},
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestConcurrentEnrollNeverDuplicatesCodes(t *testing.T) {
	repo := &mockEnrollmentRepo{existing: make(map[string]bool), enrollments: make(map[string]models.Enrollment)}
	sequences := newMockSequences()
	studentSet := make(map[string]models.Student)
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("st%d", i)
		studentSet[id] = models.Student{ID: id, UniversityID: "u1"}
	}
	students := &mockStudents{students: studentSet}
	subjects := &mockSubjects{subjects: map[string]models.Subject{
		"sub-math": {ID: "sub-math", UniversityID: "u1", Name: "Mathematics"},
	}}
	svc := NewEnrollmentService(repo, sequences, students, subjects, &mockProfessors{}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Enroll(context.Background(), EnrollRequest{
				StudentID: fmt.Sprintf("st%d", i),
				SubjectID: "sub-math",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, e := range repo.created {
		assert.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
	assert.Len(t, seen, 40)
}

func TestCodePrefix(t *testing.T) {
	assert.Equal(t, "MAT", codePrefix("Mathematics"))
	assert.Equal(t, "AR", codePrefix("Ar"))
	assert.Equal(t, "PHY", codePrefix("  physics  "))
	assert.Equal(t, "UNK", codePrefix(""))
	assert.Equal(t, "UNK", codePrefix("   "))
}

func TestFormatCodeZeroPadsToFourDigits(t *testing.T) {
	assert.Equal(t, "MAT/2026/0007", formatCode("MAT", 2026, 7))
	assert.Equal(t, "MAT/2026/0123", formatCode("MAT", 2026, 123))
	assert.Equal(t, "MAT/2026/12345", formatCode("MAT", 2026, 12345))
}

func TestSequenceYearReset(t *testing.T) {
	sequences := newMockSequences()
	ctx := context.Background()

	n, err := sequences.Next(ctx, "enrollment.subject.s1", "MAT", 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = sequences.Next(ctx, "enrollment.subject.s1", "MAT", 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// New year: counter restarts.
	n, err = sequences.Next(ctx, "enrollment.subject.s1", "MAT", 2026)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
