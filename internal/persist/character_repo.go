package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tmwgo/server/internal/world"
)

// CharacterRow is a character as listed on the character select screen.
type CharacterRow struct {
	ID        int64
	AccountID int64
	Slot      int
	Name      string
	MapID     int
	X         int
	Y         int
}

type CharacterRepo struct {
	db *DB
}

func NewCharacterRepo(db *DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

// ListByAccount returns an account's characters ordered by slot.
func (r *CharacterRepo) ListByAccount(ctx context.Context, accountID int64) ([]CharacterRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, account_id, slot, name, map_id, x, y
		 FROM characters WHERE account_id = $1
		 ORDER BY slot`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CharacterRow
	for rows.Next() {
		var c CharacterRow
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Slot, &c.Name, &c.MapID, &c.X, &c.Y); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Create inserts c and sets its ID. Returns ErrExists if the name or the
// account's slot is taken.
func (r *CharacterRepo) Create(ctx context.Context, c *CharacterRow) error {
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (account_id, slot, name, map_id, x, y)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		c.AccountID, c.Slot, c.Name, c.MapID, c.X, c.Y,
	).Scan(&c.ID)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

func (r *CharacterRepo) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM characters WHERE name = $1)`, name,
	).Scan(&exists)
	return exists, err
}

// Load reads a character with its inventory and equipment. Returns
// ErrNotFound if no character has that ID.
func (r *CharacterRepo) Load(ctx context.Context, id int64) (*world.Player, error) {
	var (
		accountID int64
		name      string
		mapID     int
		x, y      int
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT account_id, name, map_id, x, y FROM characters WHERE id = $1`, id,
	).Scan(&accountID, &name, &mapID, &x, &y)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("character %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	p := world.NewPlayer(id, name, mapID, x, y)
	p.AccountID = accountID
	if err := loadItems(ctx, r.db.Pool, p); err != nil {
		return nil, fmt.Errorf("load items of %d: %w", id, err)
	}
	return p, nil
}

// Save writes one snapshot in a single transaction.
func (r *CharacterRepo) Save(ctx context.Context, s world.Snapshot) error {
	return r.SaveAll(ctx, []world.Snapshot{s})
}

// SaveAll writes a batch of snapshots atomically.
func (r *CharacterRepo) SaveAll(ctx context.Context, snaps []world.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range snaps {
		if _, err := tx.Exec(ctx,
			`UPDATE characters SET map_id = $2, x = $3, y = $4 WHERE id = $1`,
			s.ID, s.MapID, s.X, s.Y,
		); err != nil {
			return fmt.Errorf("save character %d: %w", s.ID, err)
		}
		if err := saveItems(ctx, tx, s); err != nil {
			return fmt.Errorf("save items of %d: %w", s.ID, err)
		}
	}

	return tx.Commit(ctx)
}
