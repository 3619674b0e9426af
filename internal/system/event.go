package system

import (
	"time"

	"github.com/tmwgo/server/internal/core/event"
	coresys "github.com/tmwgo/server/internal/core/system"
)

// EventSystem delivers the events emitted during the previous tick.
// Phase 0 (Input); register it before InputSystem so it runs first.
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
