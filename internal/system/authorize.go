package system

import (
	"time"

	coresys "github.com/tmwgo/server/internal/core/system"
	"github.com/tmwgo/server/internal/link"
	"github.com/tmwgo/server/internal/login"
)

// AuthorizeSystem hands authorizations that arrived over the link to the
// broker. Phase 1 (PreUpdate).
type AuthorizeSystem struct {
	grants <-chan link.Grant
	broker *login.Broker
}

func NewAuthorizeSystem(grants <-chan link.Grant, broker *login.Broker) *AuthorizeSystem {
	return &AuthorizeSystem{grants: grants, broker: broker}
}

func (s *AuthorizeSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *AuthorizeSystem) Update(_ time.Duration) {
	for {
		select {
		case g := <-s.grants:
			s.broker.Authorize(g.Token, g.Player)
		default:
			return
		}
	}
}
