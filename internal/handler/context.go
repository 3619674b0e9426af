package handler

import (
	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/core/event"
	"github.com/tmwgo/server/internal/data"
	"github.com/tmwgo/server/internal/login"
	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/scripting"
	"github.com/tmwgo/server/internal/world"
)

// Deps holds shared dependencies injected into all game server handlers.
type Deps struct {
	Broker   *login.Broker
	World    *world.State
	Sessions *net.SessionStore
	Items    *data.ItemTable
	Scripts  *scripting.Engine // nil = no rule hooks
	Bus      *event.Bus
	Log      *zap.Logger
}

// RegisterAll registers all game server handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Before authentication only the token may be presented.
	reg.Register(packet.C_OPCODE_CONNECT,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, r *packet.Reader) (*packet.Writer, error) {
			return HandleConnect(sess.(*net.Session), r, deps)
		},
	)

	inWorld := []packet.SessionState{packet.StateAuthenticated}

	reg.Register(packet.C_OPCODE_SAY, inWorld,
		func(sess any, r *packet.Reader) (*packet.Writer, error) {
			return HandleSay(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_PICKUP, inWorld,
		func(sess any, r *packet.Reader) (*packet.Writer, error) {
			return HandlePickup(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_USE_ITEM, inWorld,
		func(sess any, r *packet.Reader) (*packet.Writer, error) {
			return HandleUseItem(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_WALK, inWorld,
		func(sess any, r *packet.Reader) (*packet.Writer, error) {
			return HandleWalk(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_EQUIP, inWorld,
		func(sess any, r *packet.Reader) (*packet.Writer, error) {
			return HandleEquip(sess.(*net.Session), r, deps)
		},
	)
}

// playerOf returns the character bound to sess. A session in the
// authenticated state always has one; a nil here means the binding was
// displaced by a newer login in this very tick.
func playerOf(sess *net.Session, deps *Deps) *world.Player {
	return deps.World.GetBySession(sess.ID)
}

func result(opcode uint16, code byte) *packet.Writer {
	w := packet.NewWriterWithOpcode(opcode)
	w.WriteUint8(code)
	return w
}
