package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain packet queues, dispatch messages
	PhasePreUpdate               // 1: inter-process grants, last tick's events
	PhaseUpdate                  // 2: game logic
	PhasePostUpdate              // 3: metrics
	PhaseOutput                  // 4: flush packets
	PhasePersist                 // 5: enqueue dirty characters
	PhaseCleanup                 // 6: expire pending logins
)

// System is the interface every tick participant implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Func adapts a plain function to System.
type Func struct {
	P  Phase
	Fn func(dt time.Duration)
}

func (f Func) Phase() Phase { return f.P }

func (f Func) Update(dt time.Duration) { f.Fn(dt) }
