package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-records-api/internal/models"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
	"github.com/noah-isme/uni-records-api/pkg/export"
	"github.com/noah-isme/uni-records-api/pkg/jobs"
	"github.com/noah-isme/uni-records-api/pkg/mail"
)

// TaskKindStudentReport marks queued report mail deliveries.
const TaskKindStudentReport = "student_report_mail"

type reportStudentStore interface {
	ListReportPending(ctx context.Context, limit int) ([]models.Student, error)
	SetReportPending(ctx context.Context, id string, pending bool) error
	SetLastReportError(ctx context.Context, id string, message *string) error
}

type reportRowStore interface {
	Rows(ctx context.Context, filter models.ReportFilter) ([]models.ReportRow, error)
	AveragesByDimension(ctx context.Context, dimension string) ([]models.ScoreAverage, error)
}

type summaryStore interface {
	StudentSubjectSummaries(ctx context.Context, studentID string) ([]models.SubjectSummary, error)
}

type universityNameStore interface {
	FindByID(ctx context.Context, id string) (*models.University, error)
}

type reportRenderer interface {
	Render(report export.StudentReport) ([]byte, string, error)
}

type taskEnqueuer interface {
	Enqueue(task jobs.Task) error
}

// BatchResult summarizes one pending-report batch run.
type BatchResult struct {
	Selected  int `json:"selected"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// ReportService produces the flattened enrollment report and runs the
// pending student report batch.
type ReportService struct {
	reports      reportRowStore
	students     reportStudentStore
	stats        summaryStore
	universities universityNameStore
	exporter     reportRenderer
	queue        taskEnqueuer
	logger       *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(reports reportRowStore, students reportStudentStore, stats summaryStore, universities universityNameStore, exporter reportRenderer, queue taskEnqueuer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		reports:      reports,
		students:     students,
		stats:        stats,
		universities: universities,
		exporter:     exporter,
		queue:        queue,
		logger:       logger,
	}
}

// Rows returns flattened report rows. Ungraded enrollments appear with a nil
// score rather than being dropped.
func (s *ReportService) Rows(ctx context.Context, filter models.ReportFilter) ([]models.ReportRow, error) {
	rows, err := s.reports.Rows(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read report")
	}
	return rows, nil
}

// Averages returns score averages grouped by the requested dimension.
func (s *ReportService) Averages(ctx context.Context, dimension string) ([]models.ScoreAverage, error) {
	averages, err := s.reports.AveragesByDimension(ctx, dimension)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return averages, nil
}

// ProcessPending selects up to limit flagged students and delivers a report
// to each. One student failing never stops the rest: the failure is recorded
// on that student and the batch moves on. Successfully handled students get
// their flag cleared before the batch returns.
func (s *ReportService) ProcessPending(ctx context.Context, limit int) (BatchResult, error) {
	students, err := s.students.ListReportPending(ctx, limit)
	if err != nil {
		return BatchResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select pending students")
	}

	result := BatchResult{Selected: len(students)}
	for _, student := range students {
		if err := s.deliverOne(ctx, student); err != nil {
			result.Failed++
			msg := err.Error()
			if setErr := s.students.SetLastReportError(ctx, student.ID, &msg); setErr != nil {
				s.logger.Sugar().Errorw("failed to record report error", "student_id", student.ID, "error", setErr)
			}
			s.logger.Sugar().Warnw("report delivery failed, continuing batch", "student_id", student.ID, "error", err)
			continue
		}
		if err := s.students.SetReportPending(ctx, student.ID, false); err != nil {
			s.logger.Sugar().Errorw("failed to clear report flag", "student_id", student.ID, "error", err)
		}
		if err := s.students.SetLastReportError(ctx, student.ID, nil); err != nil {
			s.logger.Sugar().Errorw("failed to clear report error", "student_id", student.ID, "error", err)
		}
		result.Delivered++
	}
	return result, nil
}

func (s *ReportService) deliverOne(ctx context.Context, student models.Student) error {
	if student.Email == nil || *student.Email == "" {
		return fmt.Errorf("student %s has no email address", student.ID)
	}

	universityName := ""
	if university, err := s.universities.FindByID(ctx, student.UniversityID); err == nil {
		universityName = university.Name
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("load university: %w", err)
	}

	summaries, err := s.stats.StudentSubjectSummaries(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("build summary: %w", err)
	}

	report := export.StudentReport{
		StudentName:    student.Name,
		StudentEmail:   *student.Email,
		UniversityName: universityName,
		Rows:           make([]export.SummaryRow, len(summaries)),
	}
	for i, line := range summaries {
		row := export.SummaryRow{Subject: line.SubjectName, Average: line.AverageScore}
		if line.ProfessorName != nil {
			row.Professor = *line.ProfessorName
		}
		report.Rows[i] = row
	}

	document, filename, err := s.exporter.Render(report)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	task := jobs.Task{
		ID:   uuid.NewString(),
		Kind: TaskKindStudentReport,
		Payload: mail.Message{
			To:          *student.Email,
			Subject:     "Your academic report",
			Body:        fmt.Sprintf("Hello %s,\n\nYour academic report is attached.\n", student.Name),
			Attachment:  document,
			AttachName:  filename,
			ContentType: "application/pdf",
		},
	}
	if err := s.queue.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue report mail: %w", err)
	}
	return nil
}

// MailWorker drains the report queue into a mail transport.
type MailWorker struct {
	transport mail.Transport
	logger    *zap.Logger
}

// NewMailWorker constructs MailWorker.
func NewMailWorker(transport mail.Transport, logger *zap.Logger) *MailWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailWorker{transport: transport, logger: logger}
}

// Handle delivers one queued report mail task.
func (w *MailWorker) Handle(ctx context.Context, task jobs.Task) error {
	msg, ok := task.Payload.(mail.Message)
	if !ok {
		return fmt.Errorf("task %s carries unexpected payload %T", task.ID, task.Payload)
	}
	if err := w.transport.Send(msg); err != nil {
		return fmt.Errorf("send report mail: %w", err)
	}
	w.logger.Sugar().Infow("report mail delivered", "task_id", task.ID, "to", msg.To)
	return nil
}
