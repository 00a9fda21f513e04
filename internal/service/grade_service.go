package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-records-api/internal/models"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

type gradeStore interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
}

type enrollmentLookupStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// CreateGradeRequest describes grade recording. The student is never supplied:
// it is always derived from the enrollment.
type CreateGradeRequest struct {
	EnrollmentID string     `json:"enrollment_id" validate:"required"`
	Score        float64    `json:"score" validate:"gte=0,lte=100"`
	RecordedOn   *time.Time `json:"recorded_on"`
}

// GradeService records scores against enrollments.
type GradeService struct {
	grades      gradeStore
	enrollments enrollmentLookupStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeStore, enrollments enrollmentLookupStore, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{grades: grades, enrollments: enrollments, validator: validate, logger: logger}
}

// List returns grades matching the filter.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	grades, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Create records a grade, copying the student from the owning enrollment so
// the two can never disagree.
func (s *GradeService) Create(ctx context.Context, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	grade := &models.Grade{
		EnrollmentID: enrollment.ID,
		StudentID:    enrollment.StudentID,
		Score:        req.Score,
	}
	if req.RecordedOn != nil {
		grade.RecordedOn = *req.RecordedOn
	}
	if err := s.grades.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}
	return grade, nil
}
