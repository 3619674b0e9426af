package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/tmwgo/server/internal/core/system"
	"github.com/tmwgo/server/internal/world"
)

// SnapshotQueue accepts character snapshots for saving off the game loop.
// *persist.AsyncWriter implements it.
type SnapshotQueue interface {
	Enqueue(s world.Snapshot) bool
}

// PersistenceSystem periodically queues dirty online characters for saving.
// Phase 5 (Persist).
type PersistenceSystem struct {
	world     *world.State
	queue     SnapshotQueue
	log       *zap.Logger
	tickCount int
	interval  int // auto-save every N ticks
}

func NewPersistenceSystem(ws *world.State, queue SnapshotQueue, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	return &PersistenceSystem{
		world:    ws,
		queue:    queue,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.savePlayers(true)
}

// SaveAllPlayers queues every online character, ignoring dirty flags.
// Called on graceful shutdown.
func (s *PersistenceSystem) SaveAllPlayers() {
	s.savePlayers(false)
}

// SavePlayer queues one character. The dirty flag is cleared only if the
// queue took the snapshot.
func (s *PersistenceSystem) SavePlayer(p *world.Player) bool {
	if !s.queue.Enqueue(p.Snapshot()) {
		return false
	}
	p.Dirty = false
	return true
}

func (s *PersistenceSystem) savePlayers(dirtyOnly bool) {
	queued, skipped := 0, 0
	s.world.AllPlayers(func(p *world.Player) {
		if dirtyOnly && !p.Dirty {
			return // no state change since last save
		}
		if s.SavePlayer(p) {
			queued++
		} else {
			skipped++
		}
	})
	if queued > 0 || skipped > 0 {
		s.log.Debug("自動存檔", zap.Int("queued", queued), zap.Int("skipped", skipped))
	}
}
