package system

import (
	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/core/event"
	"github.com/tmwgo/server/internal/login"
	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/world"
)

// GameDisconnect returns the game server's disconnect cleanup: forget a
// waiting connection, unbind the character, queue its final save.
// persistence may be nil.
func GameDisconnect(broker *login.Broker, ws *world.State, persistence *PersistenceSystem, bus *event.Bus, log *zap.Logger) func(*net.Session) {
	return func(sess *net.Session) {
		broker.OnDisconnect(sess)

		p := ws.RemovePlayer(sess.ID)
		if p == nil {
			return
		}
		if persistence != nil && !persistence.SavePlayer(p) {
			log.Warn("離線存檔排隊失敗", zap.String("character", p.Name))
		}
		event.Emit(bus, event.PlayerDisconnected{SessionID: sess.ID, CharID: p.ID, Name: p.Name})
		log.Info("角色離開世界", zap.String("character", p.Name), zap.Uint64("session", sess.ID))
	}
}
