package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/pkg/export"
	"github.com/noah-isme/uni-records-api/pkg/jobs"
	"github.com/noah-isme/uni-records-api/pkg/mail"
)

type mockReportStudents struct {
	pending    []models.Student
	cleared    []string
	lastErrors map[string]*string
}

func (m *mockReportStudents) ListReportPending(ctx context.Context, limit int) ([]models.Student, error) {
	if limit > 0 && len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *mockReportStudents) SetReportPending(ctx context.Context, id string, pending bool) error {
	if !pending {
		m.cleared = append(m.cleared, id)
	}
	return nil
}

func (m *mockReportStudents) SetLastReportError(ctx context.Context, id string, message *string) error {
	if m.lastErrors == nil {
		m.lastErrors = make(map[string]*string)
	}
	m.lastErrors[id] = message
	return nil
}

type mockReportRows struct{}

func (mockReportRows) Rows(ctx context.Context, filter models.ReportFilter) ([]models.ReportRow, error) {
	return nil, nil
}

func (mockReportRows) AveragesByDimension(ctx context.Context, dimension string) ([]models.ScoreAverage, error) {
	return nil, nil
}

type mockSummaries struct {
	summaries map[string][]models.SubjectSummary
	failFor   map[string]bool
}

func (m *mockSummaries) StudentSubjectSummaries(ctx context.Context, studentID string) ([]models.SubjectSummary, error) {
	if m.failFor[studentID] {
		return nil, fmt.Errorf("summary query failed")
	}
	return m.summaries[studentID], nil
}

type mockUniversities struct{}

func (mockUniversities) FindByID(ctx context.Context, id string) (*models.University, error) {
	if id == "u1" {
		return &models.University{ID: "u1", Name: "Tech University"}, nil
	}
	return nil, sql.ErrNoRows
}

type mockRenderer struct {
	failFor map[string]bool
}

func (m *mockRenderer) Render(report export.StudentReport) ([]byte, string, error) {
	if m.failFor[report.StudentEmail] {
		return nil, "", fmt.Errorf("render failed")
	}
	return []byte("%PDF-1.4"), "report.pdf", nil
}

type mockQueue struct {
	tasks []jobs.Task
	full  bool
}

func (m *mockQueue) Enqueue(task jobs.Task) error {
	if m.full {
		return fmt.Errorf("queue full")
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func email(s string) *string { return &s }

func newReportFixture(students *mockReportStudents, summaries *mockSummaries, renderer *mockRenderer, queue *mockQueue) *ReportService {
	return NewReportService(mockReportRows{}, students, summaries, mockUniversities{}, renderer, queue, nil)
}

func TestProcessPendingDeliversAndClearsFlags(t *testing.T) {
	students := &mockReportStudents{pending: []models.Student{
		{ID: "st1", UniversityID: "u1", Name: "Ana", Email: email("ana@example.com")},
		{ID: "st2", UniversityID: "u1", Name: "Ben", Email: email("ben@example.com")},
	}}
	summaries := &mockSummaries{summaries: map[string][]models.SubjectSummary{
		"st1": {{SubjectID: "sub1", SubjectName: "Algebra"}},
	}}
	queue := &mockQueue{}
	svc := newReportFixture(students, summaries, &mockRenderer{}, queue)

	result, err := svc.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Selected)
	assert.Equal(t, 2, result.Delivered)
	assert.Zero(t, result.Failed)

	assert.ElementsMatch(t, []string{"st1", "st2"}, students.cleared)
	require.Len(t, queue.tasks, 2)
	msg, ok := queue.tasks[0].Payload.(mail.Message)
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "report.pdf", msg.AttachName)
	assert.NotEmpty(t, msg.Attachment)

	// Successful delivery resets the error annotation.
	require.Contains(t, students.lastErrors, "st1")
	assert.Nil(t, students.lastErrors["st1"])
}

func TestProcessPendingContinuesPastFailures(t *testing.T) {
	students := &mockReportStudents{pending: []models.Student{
		{ID: "st1", UniversityID: "u1", Name: "Ana", Email: email("ana@example.com")},
		{ID: "st2", UniversityID: "u1", Name: "Ben"}, // no email: fails
		{ID: "st3", UniversityID: "u1", Name: "Cleo", Email: email("cleo@example.com")},
	}}
	summaries := &mockSummaries{failFor: map[string]bool{"st3": true}}
	queue := &mockQueue{}
	svc := newReportFixture(students, summaries, &mockRenderer{}, queue)

	result, err := svc.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Selected)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 2, result.Failed)

	// Only the successful student got its flag cleared.
	assert.Equal(t, []string{"st1"}, students.cleared)

	// Failed students keep the flag and carry the error annotation.
	require.Contains(t, students.lastErrors, "st2")
	require.NotNil(t, students.lastErrors["st2"])
	require.Contains(t, students.lastErrors, "st3")
	require.NotNil(t, students.lastErrors["st3"])
	assert.Contains(t, *students.lastErrors["st3"], "summary")
}

func TestProcessPendingRespectsLimit(t *testing.T) {
	students := &mockReportStudents{pending: []models.Student{
		{ID: "st1", UniversityID: "u1", Name: "Ana", Email: email("ana@example.com")},
		{ID: "st2", UniversityID: "u1", Name: "Ben", Email: email("ben@example.com")},
		{ID: "st3", UniversityID: "u1", Name: "Cleo", Email: email("cleo@example.com")},
	}}
	queue := &mockQueue{}
	svc := newReportFixture(students, &mockSummaries{}, &mockRenderer{}, queue)

	result, err := svc.ProcessPending(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Selected)
	assert.Len(t, queue.tasks, 2)
}

func TestProcessPendingEnqueueFailureMarksStudent(t *testing.T) {
	students := &mockReportStudents{pending: []models.Student{
		{ID: "st1", UniversityID: "u1", Name: "Ana", Email: email("ana@example.com")},
	}}
	queue := &mockQueue{full: true}
	svc := newReportFixture(students, &mockSummaries{}, &mockRenderer{}, queue)

	result, err := svc.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, students.cleared)
	require.NotNil(t, students.lastErrors["st1"])
}

type mockTransport struct {
	sent []mail.Message
	fail bool
}

func (m *mockTransport) Send(msg mail.Message) error {
	if m.fail {
		return fmt.Errorf("mail provider down")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func TestMailWorkerHandle(t *testing.T) {
	transport := &mockTransport{}
	worker := NewMailWorker(transport, nil)

	err := worker.Handle(context.Background(), jobs.Task{
		ID:   "task-1",
		Kind: TaskKindStudentReport,
		Payload: mail.Message{
			To:      "ana@example.com",
			Subject: "Your academic report",
		},
	})
	require.NoError(t, err)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "ana@example.com", transport.sent[0].To)
}

func TestMailWorkerRejectsUnexpectedPayload(t *testing.T) {
	worker := NewMailWorker(&mockTransport{}, nil)
	err := worker.Handle(context.Background(), jobs.Task{ID: "task-2", Payload: 42})
	require.Error(t, err)
}
