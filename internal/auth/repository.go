// Package auth manages accounts: signup, signin, and account lifecycle.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filedrop/service/internal/db"
)

// Account represents a registered account. The password hash is never
// serialized outward.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ErrNotFound is returned when an account does not exist.
var ErrNotFound = errors.New("account not found")

// Repository handles all account database operations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new account. A duplicate email yields db.SavedConflict;
// any other failure yields db.SavedError.
func (r *Repository) Create(ctx context.Context, email, passwordHash string) (db.SavedStatus, *Account) {
	a := &Account{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (email, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, email, password_hash, created_at`,
		email, passwordHash,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return db.SavedConflict, nil
		}
		log.Printf("auth: create account: %v", err)
		return db.SavedError, nil
	}
	return db.SavedSuccess, a
}

// FindByEmail fetches an account by its email address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	a := &Account{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at
		 FROM accounts WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return a, nil
}

// FindByID fetches an account by its UUID.
func (r *Repository) FindByID(ctx context.Context, id string) (*Account, error) {
	a := &Account{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at
		 FROM accounts WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return a, nil
}

// Remove deletes the account row. Upload metadata rows cascade via the
// uploads.account_id foreign key.
func (r *Repository) Remove(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
