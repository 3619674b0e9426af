package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/tmwgo/server/internal/core/system"
	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
)

// SessionSource hands over newly accepted sessions. *net.Server implements it.
type SessionSource interface {
	NewSessions() <-chan *net.Session
}

// AuthPolicy reports whether a session in state st has passed
// authentication. It decides how dispatch errors are answered.
type AuthPolicy func(st packet.SessionState) bool

// GameAuthenticated is the game server policy.
func GameAuthenticated(st packet.SessionState) bool { return st == packet.StateAuthenticated }

// AccountAuthenticated is the account server policy.
func AccountAuthenticated(st packet.SessionState) bool { return st == packet.StateLoggedIn }

var invalidMsg = packet.NewWriterWithOpcode(packet.S_OPCODE_INVALID).Bytes()

// InputSystem accepts new sessions, reaps closed ones and dispatches each
// session's queued messages through the packet registry. Phase 0 (Input).
//
// Before authentication every dispatch error is dropped silently. After
// authentication a message the session may not send is answered with
// S_OPCODE_INVALID and logged at Warn.
type InputSystem struct {
	source     SessionSource
	registry   *packet.Registry
	store      *net.SessionStore
	maxPerTick int
	authed     AuthPolicy
	log        *zap.Logger

	onDisconnect []func(*net.Session)
	onInvalid    []func(*net.Session)
	hold         func(*net.Session) bool
}

func NewInputSystem(
	source SessionSource,
	registry *packet.Registry,
	store *net.SessionStore,
	maxPerTick int,
	authed AuthPolicy,
	log *zap.Logger,
) *InputSystem {
	if maxPerTick <= 0 {
		maxPerTick = 32
	}
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		authed:     authed,
		log:        log,
	}
}

// OnDisconnect registers cleanup run once for every reaped session.
func (s *InputSystem) OnDisconnect(fn func(*net.Session)) {
	s.onDisconnect = append(s.onDisconnect, fn)
}

// OnInvalid registers a hook run whenever the invalid response is sent.
func (s *InputSystem) OnInvalid(fn func(*net.Session)) {
	s.onInvalid = append(s.onInvalid, fn)
}

// HoldWhile leaves a session's messages queued for as long as fn reports
// true. Closed sessions are still reaped.
func (s *InputSystem) HoldWhile(fn func(*net.Session) bool) {
	s.hold = fn
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions
	if s.source != nil {
	accept:
		for {
			select {
			case sess := <-s.source.NewSessions():
				s.store.Add(sess)
			default:
				break accept
			}
		}
	}

	s.store.ForEach(func(sess *net.Session) {
		if sess.IsClosed() {
			s.reap(sess)
			return
		}
		if s.hold != nil && s.hold(sess) {
			return
		}
		s.drain(sess)
	})

	// 提前 flush：讓 Phase 0 產生的封包立即進入 OutQueue。
	// Phase 4 的 OutputSystem 會再 flush 其餘封包。
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

// drain dispatches up to maxPerTick queued messages of one session.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		if sess.IsClosed() {
			return
		}
		select {
		case data := <-sess.InQueue:
			s.dispatch(sess, data)
		default:
			return
		}
	}
}

func (s *InputSystem) dispatch(sess *net.Session, data []byte) {
	state := sess.State()
	resp, err := s.registry.Dispatch(sess, state, data)
	if err == nil {
		if resp != nil && resp.Len() > 0 {
			sess.Send(resp.Bytes())
		}
		return
	}

	switch {
	case !s.authed(state):
		s.log.Debug("未驗證連線的訊息已丟棄",
			zap.Uint64("session", sess.ID),
			zap.Error(err),
		)
	case packet.IsProtocolViolation(err):
		s.log.Warn("無效的訊息類型",
			zap.Uint64("session", sess.ID),
			zap.String("character", sess.CharName),
			zap.String("account", sess.AccountName),
			zap.Error(err),
		)
		sess.Send(invalidMsg)
		for _, fn := range s.onInvalid {
			fn(sess)
		}
	default:
		// Recovered handler panic, already logged by the registry.
	}
}

// reap runs disconnect cleanup and forgets the session.
func (s *InputSystem) reap(sess *net.Session) {
	for _, fn := range s.onDisconnect {
		fn(sess)
	}
	s.store.Remove(sess.ID)
	s.log.Info("玩家斷線", zap.Uint64("session", sess.ID), zap.String("ip", sess.IP))
}

// CloseAll closes every session and runs its disconnect cleanup. Used on
// shutdown, after the game loop has stopped.
func (s *InputSystem) CloseAll() {
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
		sess.Close()
		s.reap(sess)
	})
}
