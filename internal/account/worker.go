package account

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
)

// step is blocking work for one session. It runs on a worker and returns
// the follow-up to apply on the loop, or nil.
type step func(ctx context.Context) func()

type job struct {
	sess *net.Session
	run  step
}

type completion struct {
	sess  *net.Session
	apply func()
}

// Run starts the workers and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		eg.Go(func() error {
			for {
				select {
				case j := <-s.jobs:
					s.work(ctx, j)
				case <-ctx.Done():
					return nil
				}
			}
		})
	}
	s.log.Info("帳號工作者已啟動", zap.Int("workers", s.workers))
	return eg.Wait()
}

func (s *Service) work(ctx context.Context, j job) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	apply := j.run(callCtx)
	cancel()

	select {
	case s.done <- completion{sess: j.sess, apply: apply}:
	case <-ctx.Done():
	}
}

// submit queues run for sess and holds the session's further messages
// until its result is applied. Returns false if the queue is full.
func (s *Service) submit(sess *net.Session, run step) bool {
	select {
	case s.jobs <- job{sess: sess, run: run}:
		s.busy[sess.ID] = true
		return true
	default:
		s.log.Warn("帳號工作佇列已滿", zap.Uint64("session", sess.ID))
		return false
	}
}

// post submits run and leaves the response to it. A full queue is
// answered with FAILURE right away.
func (s *Service) post(sess *net.Session, op uint16, run step) (*packet.Writer, error) {
	if !s.submit(sess, run) {
		return result(op, packet.ResultFailure), nil
	}
	return nil, nil
}

// Busy reports whether sess has a request in flight.
func (s *Service) Busy(sess *net.Session) bool { return s.busy[sess.ID] }

// Drain applies every finished request. Results for closed sessions are
// discarded; their disconnect cleanup owns the rest. Game loop only.
func (s *Service) Drain() int {
	n := 0
	for {
		select {
		case c := <-s.done:
			delete(s.busy, c.sess.ID)
			if c.apply != nil && !c.sess.IsClosed() {
				c.apply()
			}
			n++
		default:
			return n
		}
	}
}

func reply(sess *net.Session, w *packet.Writer) {
	sess.Send(w.Bytes())
}
