package system

import (
	"time"

	coresys "github.com/tmwgo/server/internal/core/system"
	"github.com/tmwgo/server/internal/net"
)

// OutputSystem flushes buffered output packets for all sessions.
// Phase 4 (Output), after all game logic.
//
// Handlers and systems call sess.Send() which appends to a per-session
// buffer; this is the single point where buffers move to the OutQueue
// channels read by the writer goroutines.
type OutputSystem struct {
	store *net.SessionStore
}

func NewOutputSystem(store *net.SessionStore) *OutputSystem {
	return &OutputSystem{store: store}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}
