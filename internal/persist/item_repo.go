package persist

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/tmwgo/server/internal/world"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the item helpers use.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadItems fills p's inventory and equipment.
func loadItems(ctx context.Context, q querier, p *world.Player) error {
	rows, err := q.Query(ctx,
		`SELECT item_id, count FROM character_items WHERE char_id = $1 ORDER BY item_id`, p.ID,
	)
	if err != nil {
		return err
	}
	for rows.Next() {
		var itemID int64
		var count int
		if err := rows.Scan(&itemID, &count); err != nil {
			rows.Close()
			return err
		}
		p.Inv.Add(uint32(itemID), count)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx,
		`SELECT slot, item_id FROM character_equipment WHERE char_id = $1`, p.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var slot int16
		var itemID int64
		if err := rows.Scan(&slot, &itemID); err != nil {
			return err
		}
		p.Gear.Set(world.EquipSlot(slot), uint32(itemID))
	}
	return rows.Err()
}

// saveItems replaces all items and equipment for a character (delete + bulk insert).
// Runs inside the caller's transaction.
func saveItems(ctx context.Context, tx pgx.Tx, s world.Snapshot) error {
	if _, err := tx.Exec(ctx, `DELETE FROM character_items WHERE char_id = $1`, s.ID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM character_equipment WHERE char_id = $1`, s.ID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, it := range s.Items {
		if it.Count <= 0 {
			continue
		}
		batch.Queue(
			`INSERT INTO character_items (char_id, item_id, count) VALUES ($1, $2, $3)`,
			s.ID, int64(it.ItemID), it.Count,
		)
	}
	for slot, itemID := range s.Equipment {
		if itemID == 0 {
			continue
		}
		batch.Queue(
			`INSERT INTO character_equipment (char_id, slot, item_id) VALUES ($1, $2, $3)`,
			s.ID, int16(slot), int64(itemID),
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}
