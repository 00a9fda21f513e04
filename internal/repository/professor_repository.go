package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// ProfessorRepository handles persistence of professors and the
// subject-professor qualification table.
type ProfessorRepository struct {
	db *sqlx.DB
}

// NewProfessorRepository constructs the repository.
func NewProfessorRepository(db *sqlx.DB) *ProfessorRepository {
	return &ProfessorRepository{db: db}
}

// List returns professors, optionally scoped to a university or department.
func (r *ProfessorRepository) List(ctx context.Context, universityID, departmentID string) ([]models.Professor, error) {
	query := `SELECT id, university_id, department_id, name, email, created_at FROM professors WHERE 1=1`
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
	var professors []models.Professor
	if err := r.db.SelectContext(ctx, &professors, query, args...); err != nil {
		return nil, fmt.Errorf("list professors: %w", err)
	}
	return professors, nil
}

// FindByID returns a professor by its ID.
func (r *ProfessorRepository) FindByID(ctx context.Context, id string) (*models.Professor, error) {
	const query = `SELECT id, university_id, department_id, name, email, created_at FROM professors WHERE id = $1`
	var professor models.Professor
	if err := r.db.GetContext(ctx, &professor, query, id); err != nil {
		return nil, err
	}
	return &professor, nil
}

// Create persists a new professor.
func (r *ProfessorRepository) Create(ctx context.Context, professor *models.Professor) error {
	if professor.ID == "" {
		professor.ID = uuid.NewString()
	}
	if professor.CreatedAt.IsZero() {
		professor.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO professors (id, university_id, department_id, name, email, created_at)
        VALUES (:id, :university_id, :department_id, :name, :email, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, professor); err != nil {
		return fmt.Errorf("create professor: %w", err)
	}
	return nil
}

// AddSubject marks the professor as qualified to teach a subject.
func (r *ProfessorRepository) AddSubject(ctx context.Context, professorID, subjectID string) error {
	const query = `INSERT INTO subject_professors (subject_id, professor_id)
        VALUES ($1, $2) ON CONFLICT (subject_id, professor_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, subjectID, professorID); err != nil {
		return fmt.Errorf("qualify professor: %w", err)
	}
	return nil
}
