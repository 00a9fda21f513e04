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

type universityStore interface {
	List(ctx context.Context) ([]models.University, error)
	FindByID(ctx context.Context, id string) (*models.University, error)
	Create(ctx context.Context, university *models.University) error
	Update(ctx context.Context, university *models.University) error
}

type departmentStore interface {
	List(ctx context.Context, universityID string) ([]models.Department, error)
	FindByID(ctx context.Context, id string) (*models.Department, error)
	Create(ctx context.Context, department *models.Department) error
	SetManager(ctx context.Context, id string, managerID *string) error
	AddProfessor(ctx context.Context, departmentID, professorID string) error
}

type professorCatalogStore interface {
	List(ctx context.Context, universityID, departmentID string) ([]models.Professor, error)
	FindByID(ctx context.Context, id string) (*models.Professor, error)
	Create(ctx context.Context, professor *models.Professor) error
	AddSubject(ctx context.Context, professorID, subjectID string) error
}

type subjectCatalogStore interface {
	List(ctx context.Context, universityID, departmentID string) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
}

type batchCounter interface {
	BatchCount(ctx context.Context, rel repository.Relation, parentIDs []string) (map[string]int, error)
}

// CreateUniversityRequest describes university creation.
type CreateUniversityRequest struct {
	Name    string  `json:"name" validate:"required"`
	Street  *string `json:"street"`
	City    *string `json:"city"`
	State   *string `json:"state"`
	ZipCode *string `json:"zip_code"`
	Country *string `json:"country"`
}

// CreateDepartmentRequest describes department creation.
type CreateDepartmentRequest struct {
	UniversityID string  `json:"university_id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	ManagerID    *string `json:"manager_id"`
}

// CreateProfessorRequest describes professor creation.
type CreateProfessorRequest struct {
	UniversityID string  `json:"university_id" validate:"required"`
	DepartmentID string  `json:"department_id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Email        *string `json:"email" validate:"omitempty,email"`
}

// CreateSubjectRequest describes subject creation. The university is derived
// from the owning department, never supplied directly.
type CreateSubjectRequest struct {
	DepartmentID string `json:"department_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Code         string `json:"code" validate:"required"`
}

// CatalogService manages the academic structure: universities, departments,
// professors and subjects, with batched rollup counts on reads.
type CatalogService struct {
	universities universityStore
	departments  departmentStore
	professors   professorCatalogStore
	subjects     subjectCatalogStore
	stats        batchCounter
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(universities universityStore, departments departmentStore, professors professorCatalogStore, subjects subjectCatalogStore, stats batchCounter, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		universities: universities,
		departments:  departments,
		professors:   professors,
		subjects:     subjects,
		stats:        stats,
		validator:    validate,
		logger:       logger,
	}
}

// ListUniversities returns universities with rollup counts, one grouped query
// per relation regardless of list size.
func (s *CatalogService) ListUniversities(ctx context.Context) ([]models.UniversityDetail, error) {
	universities, err := s.universities.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list universities")
	}
	ids := make([]string, len(universities))
	for i, u := range universities {
		ids[i] = u.ID
	}

	departmentCounts, err := s.stats.BatchCount(ctx, repository.RelDepartmentsByUniversity, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count departments")
	}
	professorCounts, err := s.stats.BatchCount(ctx, repository.RelProfessorsByUniversity, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count professors")
	}
	studentCounts, err := s.stats.BatchCount(ctx, repository.RelStudentsByUniversity, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	enrollmentCounts, err := s.stats.BatchCount(ctx, repository.RelEnrollmentsByUniversity, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}

	details := make([]models.UniversityDetail, len(universities))
	for i, u := range universities {
		details[i] = models.UniversityDetail{
			University:      u,
			DepartmentCount: departmentCounts[u.ID],
			ProfessorCount:  professorCounts[u.ID],
			StudentCount:    studentCounts[u.ID],
			EnrollmentCount: enrollmentCounts[u.ID],
		}
	}
	return details, nil
}

// GetUniversity returns one university with rollup counts.
func (s *CatalogService) GetUniversity(ctx context.Context, id string) (*models.UniversityDetail, error) {
	university, err := s.universities.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university")
	}
	detail := &models.UniversityDetail{University: *university}
	ids := []string{id}
	if counts, err := s.stats.BatchCount(ctx, repository.RelDepartmentsByUniversity, ids); err == nil {
		detail.DepartmentCount = counts[id]
	}
	if counts, err := s.stats.BatchCount(ctx, repository.RelProfessorsByUniversity, ids); err == nil {
		detail.ProfessorCount = counts[id]
	}
	if counts, err := s.stats.BatchCount(ctx, repository.RelStudentsByUniversity, ids); err == nil {
		detail.StudentCount = counts[id]
	}
	if counts, err := s.stats.BatchCount(ctx, repository.RelEnrollmentsByUniversity, ids); err == nil {
		detail.EnrollmentCount = counts[id]
	}
	return detail, nil
}

// CreateUniversity registers a new university.
func (s *CatalogService) CreateUniversity(ctx context.Context, req CreateUniversityRequest) (*models.University, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid university payload")
	}
	university := &models.University{
		Name:    req.Name,
		Street:  req.Street,
		City:    req.City,
		State:   req.State,
		ZipCode: req.ZipCode,
		Country: req.Country,
	}
	if err := s.universities.Create(ctx, university); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create university")
	}
	return university, nil
}

// ListDepartments returns departments with professor and subject counts.
func (s *CatalogService) ListDepartments(ctx context.Context, universityID string) ([]models.DepartmentDetail, error) {
	departments, err := s.departments.List(ctx, universityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	ids := make([]string, len(departments))
	for i, d := range departments {
		ids[i] = d.ID
	}
	professorCounts, err := s.stats.BatchCount(ctx, repository.RelProfessorsByDepartment, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count professors")
	}
	subjectCounts, err := s.stats.BatchCount(ctx, repository.RelSubjectsByDepartment, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subjects")
	}
	details := make([]models.DepartmentDetail, len(departments))
	for i, d := range departments {
		details[i] = models.DepartmentDetail{
			Department:     d,
			ProfessorCount: professorCounts[d.ID],
			SubjectCount:   subjectCounts[d.ID],
		}
	}
	return details, nil
}

// CreateDepartment registers a department under a university.
func (s *CatalogService) CreateDepartment(ctx context.Context, req CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	if _, err := s.universities.FindByID(ctx, req.UniversityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university")
	}
	if req.ManagerID != nil {
		if _, err := s.professors.FindByID(ctx, *req.ManagerID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "manager professor not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manager")
		}
	}
	department := &models.Department{
		UniversityID: req.UniversityID,
		Name:         req.Name,
		ManagerID:    req.ManagerID,
	}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return department, nil
}

// ListProfessors returns professors with enrollment counts.
func (s *CatalogService) ListProfessors(ctx context.Context, universityID, departmentID string) ([]models.ProfessorDetail, error) {
	professors, err := s.professors.List(ctx, universityID, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list professors")
	}
	ids := make([]string, len(professors))
	for i, p := range professors {
		ids[i] = p.ID
	}
	enrollmentCounts, err := s.stats.BatchCount(ctx, repository.RelEnrollmentsByProfessor, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	details := make([]models.ProfessorDetail, len(professors))
	for i, p := range professors {
		details[i] = models.ProfessorDetail{Professor: p, EnrollmentCount: enrollmentCounts[p.ID]}
	}
	return details, nil
}

// CreateProfessor registers a professor and affiliates them with their
// department.
func (s *CatalogService) CreateProfessor(ctx context.Context, req CreateProfessorRequest) (*models.Professor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid professor payload")
	}
	department, err := s.departments.FindByID(ctx, req.DepartmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if department.UniversityID != req.UniversityID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department belongs to a different university")
	}
	professor := &models.Professor{
		UniversityID: req.UniversityID,
		DepartmentID: req.DepartmentID,
		Name:         req.Name,
		Email:        req.Email,
	}
	if err := s.professors.Create(ctx, professor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create professor")
	}
	if err := s.departments.AddProfessor(ctx, req.DepartmentID, professor.ID); err != nil {
		s.logger.Sugar().Warnw("failed to affiliate professor", "professor_id", professor.ID, "error", err)
	}
	return professor, nil
}

// AssignSubject qualifies a professor to teach a subject.
func (s *CatalogService) AssignSubject(ctx context.Context, professorID, subjectID string) error {
	if _, err := s.professors.FindByID(ctx, professorID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "professor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load professor")
	}
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if err := s.professors.AddSubject(ctx, professorID, subjectID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign subject")
	}
	return nil
}

// ListSubjects returns subjects with enrollment counts.
func (s *CatalogService) ListSubjects(ctx context.Context, universityID, departmentID string) ([]models.SubjectDetail, error) {
	subjects, err := s.subjects.List(ctx, universityID, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	ids := make([]string, len(subjects))
	for i, sub := range subjects {
		ids[i] = sub.ID
	}
	enrollmentCounts, err := s.stats.BatchCount(ctx, repository.RelEnrollmentsBySubject, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	details := make([]models.SubjectDetail, len(subjects))
	for i, sub := range subjects {
		details[i] = models.SubjectDetail{Subject: sub, EnrollmentCount: enrollmentCounts[sub.ID]}
	}
	return details, nil
}

// GetSubject returns one subject with its enrollment count.
func (s *CatalogService) GetSubject(ctx context.Context, id string) (*models.SubjectDetail, error) {
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	detail := &models.SubjectDetail{Subject: *subject}
	counts, err := s.stats.BatchCount(ctx, repository.RelEnrollmentsBySubject, []string{id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	detail.EnrollmentCount = counts[id]
	return detail, nil
}

// CreateSubject registers a subject, denormalizing the university from the
// owning department.
func (s *CatalogService) CreateSubject(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	department, err := s.departments.FindByID(ctx, req.DepartmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	subject := &models.Subject{
		DepartmentID: req.DepartmentID,
		UniversityID: department.UniversityID,
		Name:         req.Name,
		Code:         req.Code,
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}
