// Package upload owns the upload lifecycle: binary objects in the object
// store plus their metadata rows.
package upload

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

// Upload represents a stored file's metadata. The storage key and owner are
// internal and never serialized outward.
type Upload struct {
	ID        string    `json:"id"`
	Key       string    `json:"-"`
	URL       string    `json:"url"`
	Label     string    `json:"label"`
	AccountID string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows and paginates upload listings.
type Filter struct {
	Skip   int
	Take   int
	Search string
}

// RecordsList pairs one page of records with the total count matching the
// filter (not limited by pagination).
type RecordsList struct {
	Total int64    `json:"total"`
	Data  []Upload `json:"data"`
}

// DefaultPageSize is used when a listing request does not specify take.
const DefaultPageSize = 50

// ErrNotFound is returned when an upload does not exist within the
// requesting account's scope.
var ErrNotFound = errors.New("upload not found")

// Repository handles all upload database operations.
type Repository struct {
	pool        *pgxpool.Pool
	maxPageSize int
}

// NewRepository creates a new Repository. maxPageSize caps the take value of
// listing queries.
func NewRepository(pool *pgxpool.Pool, maxPageSize int) *Repository {
	return &Repository{pool: pool, maxPageSize: maxPageSize}
}

// Create inserts an upload row. A duplicate key, url, or label yields
// db.SavedConflict; any other failure yields db.SavedError.
func (r *Repository) Create(ctx context.Context, key, url, label, accountID string) (db.SavedStatus, *Upload) {
	u := &Upload{}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO uploads (key, url, label, account_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, key, url, label, account_id, created_at`,
		key, url, label, accountID,
	).Scan(&u.ID, &u.Key, &u.URL, &u.Label, &u.AccountID, &u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return db.SavedConflict, nil
		}
		log.Printf("upload: create: %v", err)
		return db.SavedError, nil
	}
	return db.SavedSuccess, u
}

// Save persists a changed label. Conflict semantics match Create.
func (r *Repository) Save(ctx context.Context, u *Upload) (db.SavedStatus, *Upload) {
	saved := &Upload{}
	err := r.pool.QueryRow(ctx,
		`UPDATE uploads SET label = $1
		 WHERE id = $2
		 RETURNING id, key, url, label, account_id, created_at`,
		u.Label, u.ID,
	).Scan(&saved.ID, &saved.Key, &saved.URL, &saved.Label, &saved.AccountID, &saved.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return db.SavedConflict, nil
		}
		log.Printf("upload: save: %v", err)
		return db.SavedError, nil
	}
	return db.SavedSuccess, saved
}

// Find fetches an upload by id, scoped to the owning account. An upload
// belonging to another account resolves as ErrNotFound, never as a
// cross-tenant leak.
func (r *Repository) Find(ctx context.Context, id, accountID string) (*Upload, error) {
	u := &Upload{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, key, url, label, account_id, created_at
		 FROM uploads WHERE id = $1 AND account_id = $2`,
		id, accountID,
	).Scan(&u.ID, &u.Key, &u.URL, &u.Label, &u.AccountID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find upload: %w", err)
	}
	return u, nil
}

// List returns the account's uploads ordered by label ascending, optionally
// filtered by a substring match on label, paginated by skip/take. take
// defaults to DefaultPageSize and is capped at the configured maximum.
func (r *Repository) List(ctx context.Context, filter Filter, accountID string) (*RecordsList, error) {
	take := filter.Take
	if take <= 0 {
		take = DefaultPageSize
	}
	if take > r.maxPageSize {
		take = r.maxPageSize
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM uploads
		 WHERE account_id = $1 AND ($2 = '' OR label LIKE '%' || $2 || '%')`,
		accountID, filter.Search,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, key, url, label, account_id, created_at
		 FROM uploads
		 WHERE account_id = $1 AND ($2 = '' OR label LIKE '%' || $2 || '%')
		 ORDER BY label ASC
		 LIMIT $3 OFFSET $4`,
		accountID, filter.Search, take, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	records := []Upload{}
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.Key, &u.URL, &u.Label, &u.AccountID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		records = append(records, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	return &RecordsList{Total: total, Data: records}, nil
}

// Remove deletes the upload's metadata row.
func (r *Repository) Remove(ctx context.Context, u *Upload) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, u.ID); err != nil {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
