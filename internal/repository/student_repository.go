package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// StudentRepository handles persistence of students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, university_id, name, email, street, city, state, zip_code, country,
        tutor_id, account_id, report_pending, last_report_error, created_at`

// List returns students, optionally scoped to one university.
func (r *StudentRepository) List(ctx context.Context, universityID string) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	var args []interface{}
	if universityID != "" {
		query += " WHERE university_id = $1"
		args = append(args, universityID)
	}
	query += " ORDER BY name"
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID returns a student by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByIDs returns students keyed by id for the given set.
func (r *StudentRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Student, error) {
	if len(ids) == 0 {
		return map[string]models.Student{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT `+studentColumns+` FROM students WHERE id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	defer rows.Close()
	students := make(map[string]models.Student, len(ids))
	for rows.Next() {
		var student models.Student
		if err := rows.StructScan(&student); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students[student.ID] = student
	}
	return students, rows.Err()
}

// Create persists a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (id, university_id, name, email, street, city, state, zip_code, country,
        tutor_id, account_id, report_pending, last_report_error, created_at)
        VALUES (:id, :university_id, :name, :email, :street, :city, :state, :zip_code, :country,
        :tutor_id, :account_id, :report_pending, :last_report_error, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// SetReportPending flags or clears the pending report marker.
func (r *StudentRepository) SetReportPending(ctx context.Context, id string, pending bool) error {
	const query = `UPDATE students SET report_pending = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, pending); err != nil {
		return fmt.Errorf("set report pending: %w", err)
	}
	return nil
}

// SetLastReportError records the outcome annotation from the report batch.
func (r *StudentRepository) SetLastReportError(ctx context.Context, id string, message *string) error {
	const query = `UPDATE students SET last_report_error = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, message); err != nil {
		return fmt.Errorf("set last report error: %w", err)
	}
	return nil
}

// ListReportPending returns up to limit students flagged for report delivery.
func (r *StudentRepository) ListReportPending(ctx context.Context, limit int) ([]models.Student, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + studentColumns + ` FROM students WHERE report_pending = TRUE ORDER BY created_at ASC LIMIT $1`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, limit); err != nil {
		return nil, fmt.Errorf("list pending report students: %w", err)
	}
	return students, nil
}

// LinkAccountByEmail claims all unlinked students whose email matches and
// returns how many rows were linked. Idempotent: already-linked students are
// never touched.
func (r *StudentRepository) LinkAccountByEmail(ctx context.Context, accountID, email string) (int64, error) {
	const query = `UPDATE students SET account_id = $1 WHERE email = $2 AND account_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, accountID, email)
	if err != nil {
		return 0, fmt.Errorf("link students by email: %w", err)
	}
	linked, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("link students rows affected: %w", err)
	}
	return linked, nil
}
