package models

import "time"

// AccountRole distinguishes portal account capabilities.
type AccountRole string

const (
	RoleStudent AccountRole = "STUDENT"
	RoleStaff   AccountRole = "STAFF"
)

// Account is a portal login. Students acquire a link to an account lazily by
// email match.
type Account struct {
	ID           string      `db:"id" json:"id"`
	Email        string      `db:"email" json:"email"`
	Name         string      `db:"name" json:"name"`
	PasswordHash string      `db:"password_hash" json:"-"`
	Role         AccountRole `db:"role" json:"role"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}
