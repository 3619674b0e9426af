package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/world"
)

const (
	writerBatchSize   = 32
	writerSaveTimeout = 10 * time.Second
)

// SnapshotSaver is what the writer flushes to. *CharacterRepo implements it.
type SnapshotSaver interface {
	SaveAll(ctx context.Context, snaps []world.Snapshot) error
}

// AsyncWriter moves character saves off the game loop. Snapshots queue on a
// buffered channel; one goroutine drains them in batches.
type AsyncWriter struct {
	saver SnapshotSaver
	queue chan world.Snapshot
	done  chan struct{}
	log   *zap.Logger

	mu     sync.RWMutex // guards closed against concurrent Enqueue/Close
	closed bool
}

func NewAsyncWriter(saver SnapshotSaver, size int, log *zap.Logger) *AsyncWriter {
	if size <= 0 {
		size = 1024
	}
	return &AsyncWriter{
		saver: saver,
		queue: make(chan world.Snapshot, size),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Enqueue never blocks. Returns false if the queue is full or closed; the
// caller keeps the character dirty and retries later.
func (w *AsyncWriter) Enqueue(s world.Snapshot) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- s:
		return true
	default:
		w.log.Warn("存檔佇列已滿，稍後重試", zap.Int64("character", s.ID))
		return false
	}
}

// Run drains the queue until Close. Blocks; run it in its own goroutine.
func (w *AsyncWriter) Run() {
	defer close(w.done)
	batch := make([]world.Snapshot, 0, writerBatchSize)
	for s := range w.queue {
		batch = append(batch[:0], s)
	fill:
		for len(batch) < writerBatchSize {
			select {
			case next, ok := <-w.queue:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		w.flush(coalesce(batch))
	}
}

// Close stops accepting snapshots and blocks until every queued one has
// been written or ctx expires.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *AsyncWriter) flush(snaps []world.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), writerSaveTimeout)
	defer cancel()
	start := time.Now()
	if err := w.saver.SaveAll(ctx, snaps); err != nil {
		w.log.Error("角色存檔失敗", zap.Int("count", len(snaps)), zap.Error(err))
		return
	}
	w.log.Debug("角色存檔完成",
		zap.Int("count", len(snaps)),
		zap.Duration("took", time.Since(start)),
	)
}

// coalesce keeps only the newest snapshot per character, in first-seen order.
func coalesce(batch []world.Snapshot) []world.Snapshot {
	index := make(map[int64]int, len(batch))
	out := make([]world.Snapshot, 0, len(batch))
	for _, s := range batch {
		if i, ok := index[s.ID]; ok {
			out[i] = s
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}
