package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-records-api/internal/models"
	appErrors "github.com/noah-isme/uni-records-api/pkg/errors"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students st ON st.id = e.student_id
LEFT JOIN subjects sub ON sub.id = e.subject_id
LEFT JOIN professors p ON p.id = e.professor_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("e.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.UniversityID != "" {
		conditions = append(conditions, fmt.Sprintf("e.university_id = $%d", len(args)+1))
		args = append(args, filter.UniversityID)
	}
	if filter.ProfessorID != "" {
		conditions = append(conditions, fmt.Sprintf("e.professor_id = $%d", len(args)+1))
		args = append(args, filter.ProfessorID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":         "e.code",
		"created_at":   "e.created_at",
		"student_name": "st.name",
		"subject_name": "sub.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.code, e.student_id, e.university_id, e.subject_id, e.professor_id, e.created_at,
        st.name AS student_name, sub.name AS subject_name, p.name AS professor_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, code, student_id, university_id, subject_id, professor_id, created_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Exists checks whether the student already has an enrollment in the subject.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND subject_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// EnrolledStudentIDs returns which of the given students already hold an
// enrollment in the subject, in one query.
func (r *EnrollmentRepository) EnrolledStudentIDs(ctx context.Context, subjectID string, studentIDs []string) (map[string]bool, error) {
	if len(studentIDs) == 0 {
		return map[string]bool{}, nil
	}
	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, len(studentIDs)+1)
	args[0] = subjectID
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args[i+1] = id
	}
	query := fmt.Sprintf("SELECT student_id FROM enrollments WHERE subject_id = $1 AND student_id IN (%s)",
		strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	defer rows.Close()
	enrolled := make(map[string]bool, len(studentIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enrolled student id: %w", err)
		}
		enrolled[id] = true
	}
	return enrolled, rows.Err()
}

// Create persists a new enrollment record. The code must already be assigned.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	prepareEnrollment(enrollment)
	const query = `INSERT INTO enrollments (id, code, student_id, university_id, subject_id, professor_id, created_at)
        VALUES (:id, :code, :student_id, :university_id, :subject_id, :professor_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "student already enrolled in subject")
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// CreateBulk persists enrollments inside one transaction so a bulk request is
// all-or-nothing.
func (r *EnrollmentRepository) CreateBulk(ctx context.Context, enrollments []models.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO enrollments (id, code, student_id, university_id, subject_id, professor_id, created_at)
        VALUES (:id, :code, :student_id, :university_id, :subject_id, :professor_id, :created_at)`
	for i := range enrollments {
		prepareEnrollment(&enrollments[i])
		if _, err := tx.NamedExecContext(ctx, query, enrollments[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "student already enrolled in subject")
			}
			return fmt.Errorf("bulk create enrollment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollments: %w", err)
	}
	return nil
}

// Delete removes an enrollment; grades cascade at the database level.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func prepareEnrollment(enrollment *models.Enrollment) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
}
