package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// UniversityRepository handles persistence of universities.
type UniversityRepository struct {
	db *sqlx.DB
}

// NewUniversityRepository constructs the repository.
func NewUniversityRepository(db *sqlx.DB) *UniversityRepository {
	return &UniversityRepository{db: db}
}

// List returns all universities ordered by name.
func (r *UniversityRepository) List(ctx context.Context) ([]models.University, error) {
	const query = `SELECT id, name, street, city, state, zip_code, country, created_at FROM universities ORDER BY name`
	var universities []models.University
	if err := r.db.SelectContext(ctx, &universities, query); err != nil {
		return nil, fmt.Errorf("list universities: %w", err)
	}
	return universities, nil
}

// FindByID returns a university by its ID.
func (r *UniversityRepository) FindByID(ctx context.Context, id string) (*models.University, error) {
	const query = `SELECT id, name, street, city, state, zip_code, country, created_at FROM universities WHERE id = $1`
	var university models.University
	if err := r.db.GetContext(ctx, &university, query, id); err != nil {
		return nil, err
	}
	return &university, nil
}

// Create persists a new university.
func (r *UniversityRepository) Create(ctx context.Context, university *models.University) error {
	if university.ID == "" {
		university.ID = uuid.NewString()
	}
	if university.CreatedAt.IsZero() {
		university.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO universities (id, name, street, city, state, zip_code, country, created_at)
        VALUES (:id, :name, :street, :city, :state, :zip_code, :country, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, university); err != nil {
		return fmt.Errorf("create university: %w", err)
	}
	return nil
}

// Update persists changes to a university.
func (r *UniversityRepository) Update(ctx context.Context, university *models.University) error {
	const query = `UPDATE universities SET name = :name, street = :street, city = :city, state = :state,
        zip_code = :zip_code, country = :country WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, university); err != nil {
		return fmt.Errorf("update university: %w", err)
	}
	return nil
}
