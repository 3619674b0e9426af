package system

import (
	"time"

	"github.com/tmwgo/server/internal/core/event"
	coresys "github.com/tmwgo/server/internal/core/system"
	"github.com/tmwgo/server/internal/login"
	"github.com/tmwgo/server/internal/metrics"
	"github.com/tmwgo/server/internal/net"
)

// MetricsSystem refreshes gauges from loop-owned state. Phase 3 (PostUpdate).
type MetricsSystem struct {
	m      *metrics.Registry
	store  *net.SessionStore
	broker *login.Broker // nil on the account server
}

func NewMetricsSystem(m *metrics.Registry, store *net.SessionStore, broker *login.Broker) *MetricsSystem {
	return &MetricsSystem{m: m, store: store, broker: broker}
}

// Subscribe counts login events and invalid messages. bus may be nil.
func (s *MetricsSystem) Subscribe(bus *event.Bus, input *InputSystem) {
	if bus != nil {
		event.Subscribe(bus, func(event.PlayerAuthenticated) { s.m.Logins.Inc() })
		event.Subscribe(bus, func(event.LoginExpired) { s.m.LoginsExpired.Inc() })
	}
	input.OnInvalid(func(*net.Session) { s.m.InvalidMessages.Inc() })
}

func (s *MetricsSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *MetricsSystem) Update(_ time.Duration) {
	s.m.Sessions.Set(float64(s.store.Len()))
	if s.broker != nil {
		s.m.PendingLogins.Set(float64(s.broker.PendingLogins()))
		s.m.PendingClients.Set(float64(s.broker.PendingClients()))
	}
}
