package system

import (
	"time"

	coresys "github.com/tmwgo/server/internal/core/system"
)

// Completer applies, on the loop, results of work that ran on other
// goroutines. *account.Service implements it.
type Completer interface {
	Drain() int
}

// CompletionSystem applies finished account requests. Phase 1 (PreUpdate).
type CompletionSystem struct {
	completer Completer
}

func NewCompletionSystem(c Completer) *CompletionSystem {
	return &CompletionSystem{completer: c}
}

func (s *CompletionSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *CompletionSystem) Update(_ time.Duration) {
	s.completer.Drain()
}
