// Package account is the account server: registration, login, character
// management and, on character select, the authorization sent to the game
// server.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/config"
	"github.com/tmwgo/server/internal/link"
	"github.com/tmwgo/server/internal/net"
	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/persist"
)

// Field length limits, in characters.
const (
	MinUsernameLength = 4
	MaxUsernameLength = 16
	MinPasswordLength = 6
	MaxPasswordLength = 25
	MinNameLength     = 4
	MaxNameLength     = 16
)

// ErrInvalidCredentials means the username is unknown or the password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AccountStore is the account table. *persist.AccountRepo implements it.
type AccountStore interface {
	Load(ctx context.Context, username string) (*persist.AccountRow, error)
	Create(ctx context.Context, username, rawPassword string) (*persist.AccountRow, error)
	Delete(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, rawPassword string) error
	ValidatePassword(hash, rawPassword string) bool
	UpdateLastLogin(ctx context.Context, id int64) error
}

// CharacterStore is the character table. *persist.CharacterRepo implements it.
type CharacterStore interface {
	ListByAccount(ctx context.Context, accountID int64) ([]persist.CharacterRow, error)
	Create(ctx context.Context, c *persist.CharacterRow) error
	NameExists(ctx context.Context, name string) (bool, error)
}

// GameAddr is the game server address handed to clients on character select.
type GameAddr struct {
	Host string
	Port int
}

// loggedIn is the account state of one logged-in connection.
type loggedIn struct {
	account *persist.AccountRow
	chars   []persist.CharacterRow
}

// Service owns the account server's per-connection state. Handlers run on
// the account server's loop goroutine and never touch the stores or the
// link themselves: those calls run on workers (see Run) and their results
// come back through Drain.
type Service struct {
	accounts  AccountStore
	chars     CharacterStore
	publisher link.Publisher
	game      GameAddr
	cfg       config.AccountConfig
	timeout   time.Duration
	log       *zap.Logger

	sessions map[uint64]*loggedIn // session ID → account state
	online   map[int64]uint64     // account ID → session ID, also held during unregister
	deleting map[uint64]int64     // session ID → account being unregistered

	workers int
	jobs    chan job
	done    chan completion
	busy    map[uint64]bool // session ID → request in flight
}

func NewService(
	accounts AccountStore,
	chars CharacterStore,
	publisher link.Publisher,
	game GameAddr,
	cfg config.AccountConfig,
	log *zap.Logger,
) *Service {
	workers, queue := cfg.Workers, cfg.QueueSize
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 256
	}
	return &Service{
		accounts:  accounts,
		chars:     chars,
		publisher: publisher,
		game:      game,
		cfg:       cfg,
		timeout:   5 * time.Second,
		log:       log,
		sessions:  make(map[uint64]*loggedIn),
		online:    make(map[int64]uint64),
		deleting:  make(map[uint64]int64),
		workers:   workers,
		jobs:      make(chan job, queue),
		done:      make(chan completion, queue),
		busy:      make(map[uint64]bool),
	}
}

// OnDisconnect forgets the connection's login and any account it was
// unregistering.
func (s *Service) OnDisconnect(sess *net.Session) {
	s.logout(sess)
	s.release(sess)
}

// LoggedIn returns the number of logged-in connections.
func (s *Service) LoggedIn() int { return len(s.sessions) }

func (s *Service) logout(sess *net.Session) {
	st, ok := s.sessions[sess.ID]
	if !ok {
		return
	}
	delete(s.sessions, sess.ID)
	if s.online[st.account.ID] == sess.ID {
		delete(s.online, st.account.ID)
	}
	sess.AccountName = ""
	if !sess.IsClosed() {
		sess.SetState(packet.StateConnected)
	}
}

// release drops the hold an unregister keeps on its account.
func (s *Service) release(sess *net.Session) {
	id, ok := s.deleting[sess.ID]
	if !ok {
		return
	}
	delete(s.deleting, sess.ID)
	if s.online[id] == sess.ID {
		delete(s.online, id)
	}
}

// authenticate loads username and checks password. Worker only.
func (s *Service) authenticate(ctx context.Context, username, password string) (*persist.AccountRow, error) {
	acc, err := s.accounts.Load(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("load account %q: %w", username, err)
	}
	if acc == nil || !s.accounts.ValidatePassword(acc.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

func normalizeUsername(name string) string {
	return strings.ToLower(name)
}

func lengthBetween(s string, lo, hi int) bool {
	n := utf8.RuneCountInString(s)
	return n >= lo && n <= hi
}

func validCredentials(username, password string) bool {
	return lengthBetween(username, MinUsernameLength, MaxUsernameLength) &&
		lengthBetween(password, MinPasswordLength, MaxPasswordLength)
}

// freeSlot returns the lowest slot no character occupies.
func freeSlot(chars []persist.CharacterRow) int {
	used := make(map[int]bool, len(chars))
	for _, c := range chars {
		used[c.Slot] = true
	}
	slot := 0
	for used[slot] {
		slot++
	}
	return slot
}
