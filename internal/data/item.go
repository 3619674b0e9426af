package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tmwgo/server/internal/world"
)

// ItemInfo is one item template.
type ItemInfo struct {
	ItemID uint32
	Name   string

	// Equippable reports whether Slot means anything.
	Equippable bool
	Slot       world.EquipSlot
}

// ItemTable holds all item templates indexed by ItemID.
type ItemTable struct {
	items map[uint32]*ItemInfo
}

// NewItemTable builds a table from already parsed templates.
func NewItemTable(items ...*ItemInfo) *ItemTable {
	t := &ItemTable{items: make(map[uint32]*ItemInfo, len(items))}
	for _, it := range items {
		t.items[it.ItemID] = it
	}
	return t
}

// Get returns an item by ID, or nil if not found.
func (t *ItemTable) Get(itemID uint32) *ItemInfo {
	return t.items[itemID]
}

// Count returns total loaded items.
func (t *ItemTable) Count() int {
	return len(t.items)
}

// SlotFor reports the slot an item is worn in.
func (t *ItemTable) SlotFor(itemID uint32) (world.EquipSlot, bool) {
	it := t.items[itemID]
	if it == nil || !it.Equippable {
		return world.SlotMax, false
	}
	return it.Slot, true
}

type itemEntry struct {
	ItemID uint32 `yaml:"id"`
	Name   string `yaml:"name"`
	Slot   string `yaml:"slot"` // empty = not equippable
}

type itemListFile struct {
	Items []itemEntry `yaml:"items"`
}

// LoadItemTable loads the item YAML file.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	return ParseItemTable(raw)
}

// ParseItemTable parses item YAML. Duplicate IDs and unknown slots are errors.
func ParseItemTable(raw []byte) (*ItemTable, error) {
	var f itemListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}

	t := &ItemTable{items: make(map[uint32]*ItemInfo, len(f.Items))}
	for _, e := range f.Items {
		if e.ItemID == 0 {
			return nil, fmt.Errorf("item %q: id 0 is reserved", e.Name)
		}
		if _, dup := t.items[e.ItemID]; dup {
			return nil, fmt.Errorf("item %d: duplicate id", e.ItemID)
		}
		info := &ItemInfo{ItemID: e.ItemID, Name: e.Name}
		if e.Slot != "" {
			slot, err := world.ParseEquipSlot(e.Slot)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", e.ItemID, err)
			}
			info.Equippable = true
			info.Slot = slot
		}
		t.items[e.ItemID] = info
	}
	return t, nil
}
