package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/core/event"
	coresys "github.com/tmwgo/server/internal/core/system"
	"github.com/tmwgo/server/internal/login"
)

// LoginExpirySystem ages pending logins once per tick at tick end.
// Phase 6 (Cleanup).
type LoginExpirySystem struct {
	broker *login.Broker
	bus    *event.Bus
	log    *zap.Logger
}

func NewLoginExpirySystem(broker *login.Broker, bus *event.Bus, log *zap.Logger) *LoginExpirySystem {
	return &LoginExpirySystem{broker: broker, bus: bus, log: log}
}

func (s *LoginExpirySystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *LoginExpirySystem) Update(_ time.Duration) {
	for _, p := range s.broker.SweepExpired() {
		s.log.Info("登入授權逾時未領取", zap.String("character", p.Name))
		event.Emit(s.bus, event.LoginExpired{CharID: p.ID, Name: p.Name})
	}
}
