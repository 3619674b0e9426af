package handler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/core/event"
	"github.com/tmwgo/server/internal/login"
	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/world"
)

// HandleConnect processes C_OPCODE_CONNECT: token[32].
// The connect response, if any, is sent by the broker at handoff.
func HandleConnect(sess *net.Session, r *packet.Reader, deps *Deps) (*packet.Writer, error) {
	if r.Remaining() != login.TokenLength {
		deps.Log.Debug("令牌長度錯誤，忽略",
			zap.Uint64("session", sess.ID),
			zap.Int("len", r.Remaining()),
		)
		return nil, nil
	}
	token := r.ReadFixedString(login.TokenLength)

	res := deps.Broker.PresentToken(sess, token)
	deps.Log.Debug("連線出示令牌",
		zap.Uint64("session", sess.ID),
		zap.Stringer("result", res),
	)
	return nil, nil
}

// BindCharacter returns the broker's bind hook: it attaches p to the
// session, closes any older session still holding p, and marks the
// session authenticated.
func BindCharacter(deps *Deps) login.BindFunc {
	return func(c login.Conn, p *world.Player) {
		sess := c.(*net.Session)
		if old := deps.World.AddPlayer(p, sess); old != nil && old.Session != nil {
			deps.Log.Warn("角色重複登入，中斷舊連線",
				zap.String("character", p.Name),
				zap.Uint64("old_session", old.SessionID),
				zap.Uint64("session", sess.ID),
			)
			old.Session.Close()
		}
		sess.CharName = p.Name
		sess.SetState(packet.StateAuthenticated)

		event.Emit(deps.Bus, event.PlayerAuthenticated{
			SessionID: sess.ID,
			CharID:    p.ID,
			Name:      p.Name,
		})
		deps.Log.Info(fmt.Sprintf("角色進入世界  角色=%s  session=%d", p.Name, sess.ID))
	}
}
