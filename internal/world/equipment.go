package world

import "fmt"

// EquipSlot identifies an equipment slot on a character.
// Values are the slot byte of the equip message.
type EquipSlot uint8

const (
	SlotHead     EquipSlot = 0
	SlotTorso    EquipSlot = 1
	SlotArms     EquipSlot = 2
	SlotLegs     EquipSlot = 3
	SlotFeet     EquipSlot = 4
	SlotWeapon   EquipSlot = 5
	SlotShield   EquipSlot = 6
	SlotRing     EquipSlot = 7
	SlotNecklace EquipSlot = 8
	SlotMax      EquipSlot = 9
)

var slotNames = [SlotMax]string{
	"head", "torso", "arms", "legs", "feet", "weapon", "shield", "ring", "necklace",
}

func (s EquipSlot) Valid() bool { return s < SlotMax }

func (s EquipSlot) String() string {
	if !s.Valid() {
		return fmt.Sprintf("slot(%d)", uint8(s))
	}
	return slotNames[s]
}

// ParseEquipSlot maps a slot name ("weapon", "head", ...) to its slot.
func ParseEquipSlot(name string) (EquipSlot, error) {
	for i, n := range slotNames {
		if n == name {
			return EquipSlot(i), nil
		}
	}
	return SlotMax, fmt.Errorf("unknown equip slot %q", name)
}

// Equipment tracks what a character currently wears.
// Each slot holds an item ID (0 = empty).
type Equipment struct {
	Slots [SlotMax]uint32
}

// Set places an item in a slot (or 0 to clear).
func (e *Equipment) Set(slot EquipSlot, itemID uint32) {
	if slot.Valid() {
		e.Slots[slot] = itemID
	}
}
