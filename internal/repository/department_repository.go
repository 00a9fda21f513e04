package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// DepartmentRepository handles persistence of departments and the
// department-professor affiliation table.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs the repository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns departments, optionally scoped to one university.
func (r *DepartmentRepository) List(ctx context.Context, universityID string) ([]models.Department, error) {
	query := `SELECT id, university_id, name, manager_id, created_at FROM departments`
	var args []interface{}
	if universityID != "" {
		query += " WHERE university_id = $1"
		args = append(args, universityID)
	}
	query += " ORDER BY name"
	var departments []models.Department
	if err := r.db.SelectContext(ctx, &departments, query, args...); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindByID returns a department by its ID.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.Department, error) {
	const query = `SELECT id, university_id, name, manager_id, created_at FROM departments WHERE id = $1`
	var department models.Department
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// Create persists a new department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	if department.CreatedAt.IsZero() {
		department.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO departments (id, university_id, name, manager_id, created_at)
        VALUES (:id, :university_id, :name, :manager_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// SetManager assigns the managing professor.
func (r *DepartmentRepository) SetManager(ctx context.Context, id string, managerID *string) error {
	const query = `UPDATE departments SET manager_id = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, managerID); err != nil {
		return fmt.Errorf("set department manager: %w", err)
	}
	return nil
}

// AddProfessor affiliates a professor with the department. The pair is unique;
// re-adding is a no-op.
func (r *DepartmentRepository) AddProfessor(ctx context.Context, departmentID, professorID string) error {
	const query = `INSERT INTO department_professors (department_id, professor_id)
        VALUES ($1, $2) ON CONFLICT (department_id, professor_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, departmentID, professorID); err != nil {
		return fmt.Errorf("affiliate professor: %w", err)
	}
	return nil
}
