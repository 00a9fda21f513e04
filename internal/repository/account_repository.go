package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-records-api/internal/models"
)

// AccountRepository handles persistence of portal accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByID returns an account by its ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	const query = `SELECT id, email, name, password_hash, role, created_at FROM accounts WHERE id = $1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail returns the account matching the email, or nil when none exists.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	const query = `SELECT id, email, name, password_hash, role, created_at FROM accounts WHERE email = $1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return &account, nil
}

// Create persists a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.Role == "" {
		account.Role = models.RoleStudent
	}
	const query = `INSERT INTO accounts (id, email, name, password_hash, role, created_at)
        VALUES (:id, :email, :name, :password_hash, :role, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// UpdateEmail changes the account email.
func (r *AccountRepository) UpdateEmail(ctx context.Context, id, email string) error {
	const query = `UPDATE accounts SET email = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, email); err != nil {
		return fmt.Errorf("update account email: %w", err)
	}
	return nil
}
