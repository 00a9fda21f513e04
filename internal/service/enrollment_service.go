package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-records-api/internal/models"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

// fallbackPrefix is used when a subject name yields no usable letters.
const fallbackPrefix = "UNK"

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	Exists(ctx context.Context, studentID, subjectID string) (bool, error)
	EnrolledStudentIDs(ctx context.Context, subjectID string, studentIDs []string) (map[string]bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	CreateBulk(ctx context.Context, enrollments []models.Enrollment) error
	Delete(ctx context.Context, id string) error
}

type sequenceStore interface {
	Next(ctx context.Context, key, prefix string, year int) (int, error)
	NextRange(ctx context.Context, key, prefix string, year, count int) (int, error)
}

type studentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Student, error)
}

type subjectStore interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type professorStore interface {
	FindByID(ctx context.Context, id string) (*models.Professor, error)
}

type allocationMeter interface {
	AddCodesAllocated(n int)
}

// EnrollRequest describes a single enrollment creation. An empty Code asks the
// allocator for one; a caller-supplied code is stored as-is.
type EnrollRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required"`
	ProfessorID string `json:"professor_id"`
	Code        string `json:"code"`
}

// BulkEnrollRequest enrolls several students into one subject at once.
type BulkEnrollRequest struct {
	SubjectID   string   `json:"subject_id" validate:"required"`
	ProfessorID string   `json:"professor_id"`
	StudentIDs  []string `json:"student_ids" validate:"required,min=1"`
}

// BulkEnrollResult reports created enrollments and students skipped because
// they already held one.
type BulkEnrollResult struct {
	Created []models.Enrollment `json:"created"`
	Skipped []string            `json:"skipped,omitempty"`
}

// EnrollmentService orchestrates enrollment creation and code allocation.
type EnrollmentService struct {
	repo       enrollmentStore
	sequences  sequenceStore
	students   studentStore
	subjects   subjectStore
	professors professorStore
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    allocationMeter
	now        func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentStore, sequences sequenceStore, students studentStore, subjects subjectStore, professors professorStore, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:       repo,
		sequences:  sequences,
		students:   students,
		subjects:   subjects,
		professors: professors,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithMetrics attaches a counter for allocated enrollment codes.
func (s *EnrollmentService) WithMetrics(metrics allocationMeter) *EnrollmentService {
	s.metrics = metrics
	return s
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Enroll registers a student in a subject, allocating a code unless the caller
// supplied one.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, subject, err := s.loadParticipants(ctx, req.StudentID, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if req.ProfessorID != "" {
		if _, err := s.professors.FindByID(ctx, req.ProfessorID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "professor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
		}
	}
	exists, err := s.repo.Exists(ctx, req.StudentID, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in subject")
	}

	code := req.Code
	if code == "" {
		code, err = s.allocateCode(ctx, subject)
		if err != nil {
			return nil, err
		}
	}

	enrollment := &models.Enrollment{
		Code:         code,
		StudentID:    student.ID,
		UniversityID: student.UniversityID,
		SubjectID:    subject.ID,
	}
	if req.ProfessorID != "" {
		enrollment.ProfessorID = &req.ProfessorID
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.FromError(err)
	}
	return enrollment, nil
}

// BulkEnroll registers several students in one subject. Students already
// enrolled are skipped; if every student is already enrolled the request is
// rejected. The per-subject counter is advanced once for the whole batch.
func (s *EnrollmentService) BulkEnroll(ctx context.Context, req BulkEnrollRequest) (*BulkEnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk enrollment payload")
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	students, err := s.students.FindByIDs(ctx, req.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	for _, id := range req.StudentIDs {
		student, ok := students[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", id))
		}
		if student.UniversityID != subject.UniversityID {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s belongs to a different university than the subject", id))
		}
	}

	enrolled, err := s.repo.EnrolledStudentIDs(ctx, req.SubjectID, req.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollments")
	}
	result := &BulkEnrollResult{}
	var pending []string
	for _, id := range req.StudentIDs {
		if enrolled[id] {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "all selected students are already enrolled in this subject")
	}

	// One counter advance for the whole batch, not one per row.
	prefix := codePrefix(subject.Name)
	year := s.now().Year()
	first, err := s.sequences.NextRange(ctx, sequenceKey(subject.ID), prefix, year, len(pending))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "enrollment sequence unavailable")
	}
	if s.metrics != nil {
		s.metrics.AddCodesAllocated(len(pending))
	}

	enrollments := make([]models.Enrollment, 0, len(pending))
	for i, studentID := range pending {
		enrollment := models.Enrollment{
			Code:         formatCode(prefix, year, first+i),
			StudentID:    studentID,
			UniversityID: students[studentID].UniversityID,
			SubjectID:    subject.ID,
		}
		if req.ProfessorID != "" {
			professorID := req.ProfessorID
			enrollment.ProfessorID = &professorID
		}
		enrollments = append(enrollments, enrollment)
	}
	if err := s.repo.CreateBulk(ctx, enrollments); err != nil {
		return nil, appErrors.FromError(err)
	}
	result.Created = enrollments
	return result, nil
}

// Delete removes an enrollment and its grades.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

func (s *EnrollmentService) loadParticipants(ctx context.Context, studentID, subjectID string) (*models.Student, *models.Subject, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if student.UniversityID != subject.UniversityID {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "student and subject belong to different universities")
	}
	return student, subject, nil
}

func (s *EnrollmentService) allocateCode(ctx context.Context, subject *models.Subject) (string, error) {
	prefix := codePrefix(subject.Name)
	year := s.now().Year()
	n, err := s.sequences.Next(ctx, sequenceKey(subject.ID), prefix, year)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, "enrollment sequence unavailable")
	}
	if s.metrics != nil {
		s.metrics.AddCodesAllocated(1)
	}
	return formatCode(prefix, year, n), nil
}

func sequenceKey(subjectID string) string {
	return "enrollment.subject." + subjectID
}

// codePrefix derives the code prefix from the first three letters of the
// subject name, falling back to UNK for blank names.
func codePrefix(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fallbackPrefix
	}
	runes := []rune(trimmed)
	if len(runes) > 3 {
		runes = runes[:3]
	}
	prefix := strings.ToUpper(string(runes))
	if strings.TrimFunc(prefix, unicode.IsSpace) == "" {
		return fallbackPrefix
	}
	return prefix
}

func formatCode(prefix string, year, n int) string {
	return fmt.Sprintf("%s/%d/%04d", prefix, year, n)
}
