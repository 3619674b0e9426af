package world

// MaxStack caps the count of a single inventory entry.
const MaxStack = 30000

// InvItem is one stack of items in a character's inventory.
type InvItem struct {
	ItemID uint32
	Count  int
}

// Inventory holds a character's in-memory item list.
// Accessed only from the game loop goroutine.
type Inventory struct {
	Items []*InvItem
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{
		Items: make([]*InvItem, 0, 16),
	}
}

// FindByItemID returns the stack for itemID, or nil.
func (inv *Inventory) FindByItemID(itemID uint32) *InvItem {
	for _, it := range inv.Items {
		if it.ItemID == itemID {
			return it
		}
	}
	return nil
}

// Has reports whether at least one itemID is held.
func (inv *Inventory) Has(itemID uint32) bool {
	it := inv.FindByItemID(itemID)
	return it != nil && it.Count > 0
}

// Count returns how many of itemID are held.
func (inv *Inventory) Count(itemID uint32) int {
	if it := inv.FindByItemID(itemID); it != nil {
		return it.Count
	}
	return 0
}

// Size returns the number of distinct stacks.
func (inv *Inventory) Size() int {
	return len(inv.Items)
}

// Add stacks count of itemID. Returns the affected stack.
func (inv *Inventory) Add(itemID uint32, count int) *InvItem {
	if existing := inv.FindByItemID(itemID); existing != nil {
		existing.Count = min(existing.Count+count, MaxStack)
		return existing
	}
	item := &InvItem{ItemID: itemID, Count: min(count, MaxStack)}
	inv.Items = append(inv.Items, item)
	return item
}
