package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-records-api/internal/models"
	"github.com/noah-isme/uni-records-api/internal/repository"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

type studentManagerStore interface {
	List(ctx context.Context, universityID string) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	SetReportPending(ctx context.Context, id string, pending bool) error
}

type accountLookupStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

type studentStatsStore interface {
	BatchCount(ctx context.Context, rel repository.Relation, parentIDs []string) (map[string]int, error)
	StudentSubjectSummaries(ctx context.Context, studentID string) ([]models.SubjectSummary, error)
}

// CreateStudentRequest describes student creation.
type CreateStudentRequest struct {
	UniversityID string  `json:"university_id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Street       *string `json:"street"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	ZipCode      *string `json:"zip_code"`
	Country      *string `json:"country"`
	TutorID      *string `json:"tutor_id"`
}

// StudentService manages students, their rollup counts and academic
// summaries, and the pending-report flag.
type StudentService struct {
	students     studentManagerStore
	universities universityStore
	professors   professorCatalogStore
	accounts     accountLookupStore
	stats        studentStatsStore
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(students studentManagerStore, universities universityStore, professors professorCatalogStore, accounts accountLookupStore, stats studentStatsStore, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		students:     students,
		universities: universities,
		professors:   professors,
		accounts:     accounts,
		stats:        stats,
		validator:    validate,
		logger:       logger,
	}
}

// List returns students with enrollment and grade counts, one grouped query
// per relation regardless of list size.
func (s *StudentService) List(ctx context.Context, universityID string) ([]models.StudentDetail, error) {
	students, err := s.students.List(ctx, universityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	enrollmentCounts, err := s.stats.BatchCount(ctx, repository.RelEnrollmentsByStudent, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	gradeCounts, err := s.stats.BatchCount(ctx, repository.RelGradesByStudent, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count grades")
	}
	details := make([]models.StudentDetail, len(students))
	for i, st := range students {
		details[i] = models.StudentDetail{
			Student:         st,
			EnrollmentCount: enrollmentCounts[st.ID],
			GradeCount:      gradeCounts[st.ID],
		}
	}
	return details, nil
}

// Get returns one student with rollup counts.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	detail := &models.StudentDetail{Student: *student}
	ids := []string{id}
	enrollmentCounts, err := s.stats.BatchCount(ctx, repository.RelEnrollmentsByStudent, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	gradeCounts, err := s.stats.BatchCount(ctx, repository.RelGradesByStudent, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count grades")
	}
	detail.EnrollmentCount = enrollmentCounts[id]
	detail.GradeCount = gradeCounts[id]
	return detail, nil
}

// Create registers a student. When the email matches an existing portal
// account the student is linked immediately; no account is ever created here.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.universities.FindByID(ctx, req.UniversityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university")
	}
	if req.TutorID != nil {
		if _, err := s.professors.FindByID(ctx, *req.TutorID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor professor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
		}
	}

	student := &models.Student{
		UniversityID: req.UniversityID,
		Name:         req.Name,
		Email:        req.Email,
		Street:       req.Street,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Country:      req.Country,
		TutorID:      req.TutorID,
	}
	if req.Email != nil && *req.Email != "" {
		account, err := s.accounts.FindByEmail(ctx, *req.Email)
		if err != nil {
			s.logger.Sugar().Warnw("account lookup failed, student stays unlinked", "email", *req.Email, "error", err)
		} else if account != nil {
			student.AccountID = &account.ID
		}
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Summary returns the per-subject academic summary for a student, one line
// per enrolled subject with the averaged score where grades exist.
func (s *StudentService) Summary(ctx context.Context, id string) ([]models.SubjectSummary, error) {
	if _, err := s.students.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	summaries, err := s.stats.StudentSubjectSummaries(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build summary")
	}
	return summaries, nil
}

// QueueReport flags the student for the next report delivery batch.
func (s *StudentService) QueueReport(ctx context.Context, id string) error {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Email == nil || *student.Email == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student has no email address")
	}
	if err := s.students.SetReportPending(ctx, id, true); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag student")
	}
	return nil
}
