package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

type AccountRow struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

type AccountRepo struct {
	db   *DB
	cost int
}

// NewAccountRepo creates a repo hashing passwords at the given bcrypt cost
// (bcrypt.DefaultCost if out of range).
func NewAccountRepo(db *DB, cost int) *AccountRepo {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AccountRepo{db: db, cost: cost}
}

// Load returns nil, nil when no account has that username.
func (r *AccountRepo) Load(ctx context.Context, username string) (*AccountRow, error) {
	row := &AccountRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at, last_login
		 FROM accounts WHERE username = $1`, username,
	).Scan(&row.ID, &row.Username, &row.PasswordHash, &row.CreatedAt, &row.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Create inserts a new account. Returns ErrExists if the username is taken.
func (r *AccountRepo) Create(ctx context.Context, username, rawPassword string) (*AccountRow, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), r.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	row := &AccountRow{Username: username, PasswordHash: string(hash)}
	err = r.db.Pool.QueryRow(ctx,
		`INSERT INTO accounts (username, password_hash) VALUES ($1, $2)
		 RETURNING id, created_at`,
		row.Username, row.PasswordHash,
	).Scan(&row.ID, &row.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrExists
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Delete removes an account and, by cascade, its characters.
func (r *AccountRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepo) UpdatePassword(ctx context.Context, id int64, rawPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), r.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`UPDATE accounts SET password_hash = $2 WHERE id = $1`,
		id, string(hash),
	)
	return err
}

func (r *AccountRepo) ValidatePassword(hash string, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}

func (r *AccountRepo) UpdateLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET last_login = NOW() WHERE id = $1`, id,
	)
	return err
}
