package world

import (
	"github.com/tmwgo/server/internal/net"
)

// Player holds in-memory data for a character loaded into the game server.
// Accessed only from the game loop goroutine; no locks.
type Player struct {
	ID        int64 // DB ID; the character's identity
	AccountID int64
	Name      string

	MapID int
	X     int
	Y     int

	// Walk target. Movement itself is not simulated.
	DestX int
	DestY int

	Inv  *Inventory
	Gear Equipment

	// Bound connection; nil until a pending login meets its client.
	SessionID uint64
	Session   *net.Session

	Dirty bool // changed since last save
}

// NewPlayer creates a character handle with an empty inventory.
func NewPlayer(id int64, name string, mapID, x, y int) *Player {
	return &Player{
		ID:    id,
		Name:  name,
		MapID: mapID,
		X:     x,
		Y:     y,
		DestX: x,
		DestY: y,
		Inv:   NewInventory(),
	}
}

// SetDestination records where the character is walking to. The target is
// not persisted, so the character stays clean.
func (p *Player) SetDestination(x, y int) {
	p.DestX = x
	p.DestY = y
}

// EquipRules decides whether a character may wear an item in a slot.
type EquipRules interface {
	CanEquip(p *Player, itemID uint32, slot EquipSlot) bool
}

// Equip places a possessed item into slot. Returns false, leaving the
// character untouched, if the slot is invalid, the item is not in the
// inventory, or rules reject it.
func (p *Player) Equip(itemID uint32, slot EquipSlot, rules EquipRules) bool {
	if !slot.Valid() || !p.Inv.Has(itemID) {
		return false
	}
	if rules != nil && !rules.CanEquip(p, itemID, slot) {
		return false
	}
	p.Gear.Set(slot, itemID)
	p.Dirty = true
	return true
}

// Snapshot is a copy of the persistent fields of a Player, safe to hand to
// another goroutine.
type Snapshot struct {
	ID        int64
	Name      string
	MapID     int
	X         int
	Y         int
	Items     []InvItem
	Equipment [SlotMax]uint32
}

// Snapshot copies the persistent state.
func (p *Player) Snapshot() Snapshot {
	items := make([]InvItem, 0, len(p.Inv.Items))
	for _, it := range p.Inv.Items {
		items = append(items, *it)
	}
	return Snapshot{
		ID:        p.ID,
		Name:      p.Name,
		MapID:     p.MapID,
		X:         p.X,
		Y:         p.Y,
		Items:     items,
		Equipment: p.Gear.Slots,
	}
}
