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

// SubjectRepository handles persistence of subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns subjects, optionally scoped to a university or department.
func (r *SubjectRepository) List(ctx context.Context, universityID, departmentID string) ([]models.Subject, error) {
	query := `SELECT id, department_id, university_id, name, code, created_at FROM subjects WHERE 1=1`
	var args []interface{}
	if universityID != "" {
		args = append(args, universityID)
		query += fmt.Sprintf(" AND university_id = $%d", len(args))
	}
	if departmentID != "" {
		args = append(args, departmentID)
		query += fmt.Sprintf(" AND department_id = $%d", len(args))
	}
	query += " ORDER BY name"
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID returns a subject by its ID.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, department_id, university_id, name, code, created_at FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindByIDs returns subjects keyed by id for the given set.
func (r *SubjectRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Subject, error) {
	if len(ids) == 0 {
		return map[string]models.Subject{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, department_id, university_id, name, code, created_at FROM subjects WHERE id IN (%s)`,
		strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find subjects: %w", err)
	}
	defer rows.Close()
	subjects := make(map[string]models.Subject, len(ids))
	for rows.Next() {
		var subject models.Subject
		if err := rows.StructScan(&subject); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects[subject.ID] = subject
	}
	return subjects, rows.Err()
}

// Create persists a new subject. UniversityID is denormalized from the owning
// department by the service before insert.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO subjects (id, department_id, university_id, name, code, created_at)
        VALUES (:id, :department_id, :university_id, :name, :code, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}
