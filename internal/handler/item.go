package handler

import (
	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/world"
)

// HandlePickup processes C_OPCODE_PICKUP: item id.
// The ground item itself is not tracked, so pickup always succeeds.
func HandlePickup(sess *net.Session, r *packet.Reader, deps *Deps) (*packet.Writer, error) {
	itemID := r.ReadUint32()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}

	player := playerOf(sess, deps)
	if player == nil {
		return nil, nil
	}
	player.Inv.Add(itemID, 1)
	player.Dirty = true
	return result(packet.S_OPCODE_PICKUP_RESPONSE, packet.ResultOK), nil
}

// HandleUseItem processes C_OPCODE_USE_ITEM: item id.
// Only possession is checked; items have no effect yet.
func HandleUseItem(sess *net.Session, r *packet.Reader, deps *Deps) (*packet.Writer, error) {
	itemID := r.ReadUint32()
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}

	player := playerOf(sess, deps)
	if player == nil {
		return nil, nil
	}
	if !player.Inv.Has(itemID) {
		return result(packet.S_OPCODE_USE_RESPONSE, packet.ResultFailure), nil
	}
	return result(packet.S_OPCODE_USE_RESPONSE, packet.ResultOK), nil
}

// HandleEquip processes C_OPCODE_EQUIP: item id, slot.
func HandleEquip(sess *net.Session, r *packet.Reader, deps *Deps) (*packet.Writer, error) {
	itemID := r.ReadUint32()
	slot := world.EquipSlot(r.ReadUint8())
	if r.Overrun() {
		return nil, packet.ErrTruncated
	}

	player := playerOf(sess, deps)
	if player == nil {
		return nil, nil
	}
	if !player.Equip(itemID, slot, itemRules{deps}) {
		deps.Log.Debug("裝備失敗",
			zap.String("player", player.Name),
			zap.Uint32("item", itemID),
			zap.Stringer("slot", slot),
		)
		return result(packet.S_OPCODE_EQUIP_RESPONSE, packet.ResultFailure), nil
	}
	return result(packet.S_OPCODE_EQUIP_RESPONSE, packet.ResultOK), nil
}

// itemRules checks the item table, then the Lua can_equip hook.
type itemRules struct {
	deps *Deps
}

func (r itemRules) CanEquip(p *world.Player, itemID uint32, slot world.EquipSlot) bool {
	if r.deps.Items == nil {
		return false
	}
	want, ok := r.deps.Items.SlotFor(itemID)
	if !ok || want != slot {
		return false
	}
	if r.deps.Scripts != nil && !r.deps.Scripts.CanEquip(itemID, slot.String(), p.Name) {
		return false
	}
	return true
}
