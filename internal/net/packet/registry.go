package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateConnected     SessionState = iota // transport up, no identity yet
	StateAuthenticated                     // game server: bound to a character
	StateLoggedIn                          // account server: logged in to an account
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateAuthenticated:
		return "Authenticated"
	case StateLoggedIn:
		return "LoggedIn"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

var (
	ErrEmptyPacket     = errors.New("empty packet")
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrStateNotAllowed = errors.New("opcode not allowed in state")
	// ErrTruncated is returned by handlers whose payload ended before every
	// declared field was read.
	ErrTruncated = errors.New("truncated payload")
)

// IsProtocolViolation reports whether err means the peer sent a message it
// may not send, as opposed to a handler failure.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrEmptyPacket) ||
		errors.Is(err, ErrUnknownOpcode) ||
		errors.Is(err, ErrStateNotAllowed) ||
		errors.Is(err, ErrTruncated)
}

// HandlerFunc is the callback signature for packet handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
// A handler returns at most one response; nil means nothing is sent.
type HandlerFunc func(sess any, r *Reader) (*Writer, error)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps opcodes to handlers with state-based access control.
type Registry struct {
	handlers map[uint16]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[uint16]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given session states.
func (reg *Registry) Register(opcode uint16, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch finds the handler for the opcode in data[0:2], validates the
// session state, and calls the handler. The returned writer is the handler's
// response, possibly nil.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) (*Writer, error) {
	if len(data) < 2 {
		return nil, ErrEmptyPacket
	}
	r := NewReader(data)
	opcode := r.Opcode()
	reg.log.Debug("收到封包",
		zap.Uint16("opcode", opcode),
		zap.Int("size", len(data)),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[opcode]
	if !ok {
		return nil, fmt.Errorf("%w 0x%04X", ErrUnknownOpcode, opcode)
	}
	if !entry.allowedStates[state] {
		return nil, fmt.Errorf("%w: 0x%04X in %s", ErrStateNotAllowed, opcode, state)
	}

	return reg.safeCall(entry.fn, sess, r, opcode)
}

// safeCall executes a handler with panic recovery to prevent a single
// bad packet from crashing the entire game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader, opcode uint16) (resp *Writer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.Uint16("opcode", opcode),
				zap.Any("panic", rec),
			)
			resp = nil
			err = fmt.Errorf("handler panic for opcode 0x%04X: %v", opcode, rec)
		}
	}()
	return fn(sess, r)
}
