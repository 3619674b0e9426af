// Package login reconciles the two halves of a game server login: the
// authorization sent by the account server and the client presenting its
// token on connect. Either may arrive first.
package login

import (
	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/world"
)

// PendingLoginTicks is how many ticks an unclaimed authorization survives.
const PendingLoginTicks = 300

// Conn is the part of a client connection the broker needs.
type Conn interface {
	Send(data []byte)
	IsClosed() bool
}

// BindFunc attaches a character to a connection and marks the connection
// authenticated. Called exactly once per successful handoff, before the
// connect response is sent.
type BindFunc func(c Conn, p *world.Player)

// Result is the outcome of PresentToken.
type Result int

const (
	// ResultAuthenticated: the token matched a pending login; the connection is bound.
	ResultAuthenticated Result = iota
	// ResultAwaiting: the connection now waits for its authorization.
	ResultAwaiting
	// ResultIgnored: the connection already waits, or the token is claimed by another connection.
	ResultIgnored
)

func (r Result) String() string {
	switch r {
	case ResultAuthenticated:
		return "authenticated"
	case ResultAwaiting:
		return "awaiting"
	case ResultIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

type pendingLogin struct {
	player *world.Player
	ticks  int
}

// Broker holds the two pending tables. A token is in at most one of them.
// Game loop only; no locks.
type Broker struct {
	pendingLogins  map[string]*pendingLogin // token → authorized character
	pendingClients map[string]Conn          // token → waiting connection
	clientTokens   map[Conn]string          // waiting connection → token

	bind BindFunc
	log  *zap.Logger
}

func NewBroker(bind BindFunc, log *zap.Logger) *Broker {
	return &Broker{
		pendingLogins:  make(map[string]*pendingLogin),
		pendingClients: make(map[string]Conn),
		clientTokens:   make(map[Conn]string),
		bind:           bind,
		log:            log,
	}
}

// Authorize records that the holder of token may play as p. If a live
// connection is already waiting with that token it is bound immediately.
// A waiting connection that has closed but not been reaped yet counts as
// gone, so the token stays claimable by a reconnect.
func (b *Broker) Authorize(token string, p *world.Player) {
	if c, ok := b.pendingClients[token]; ok {
		b.removeClient(token, c)
		if !c.IsClosed() {
			b.handoff(c, p)
			return
		}
		b.log.Debug("等待中的連線已關閉，保留授權", zap.String("character", p.Name))
	}
	if old, ok := b.pendingLogins[token]; ok {
		b.log.Warn("重複授權，覆蓋舊的待登入資料",
			zap.String("old", old.player.Name),
			zap.String("new", p.Name),
		)
	}
	b.pendingLogins[token] = &pendingLogin{player: p, ticks: PendingLoginTicks}
	b.log.Debug("登入授權待領取", zap.String("character", p.Name))
}

// PresentToken handles a connection offering token.
// A connection that is already waiting is ignored whatever token it sends.
func (b *Broker) PresentToken(c Conn, token string) Result {
	if _, waiting := b.clientTokens[c]; waiting {
		return ResultIgnored
	}
	if pl, ok := b.pendingLogins[token]; ok {
		delete(b.pendingLogins, token)
		b.handoff(c, pl.player)
		return ResultAuthenticated
	}
	if other, claimed := b.pendingClients[token]; claimed {
		if !other.IsClosed() {
			b.log.Debug("令牌已被其他連線佔用")
			return ResultIgnored
		}
		b.removeClient(token, other)
	}
	b.pendingClients[token] = c
	b.clientTokens[c] = token
	return ResultAwaiting
}

// SweepExpired ages every pending login by one tick and drops those that
// run out. Called once per tick. Returns the characters dropped.
func (b *Broker) SweepExpired() []*world.Player {
	var expired []*world.Player
	for token, pl := range b.pendingLogins {
		pl.ticks--
		if pl.ticks <= 0 {
			delete(b.pendingLogins, token)
			expired = append(expired, pl.player)
		}
	}
	return expired
}

// OnDisconnect forgets a waiting connection. Pending logins are untouched.
func (b *Broker) OnDisconnect(c Conn) {
	if token, ok := b.clientTokens[c]; ok {
		b.removeClient(token, c)
	}
}

// PendingLogins returns the number of unclaimed authorizations.
func (b *Broker) PendingLogins() int { return len(b.pendingLogins) }

// PendingClients returns the number of connections waiting for authorization.
func (b *Broker) PendingClients() int { return len(b.pendingClients) }

func (b *Broker) removeClient(token string, c Conn) {
	delete(b.pendingClients, token)
	delete(b.clientTokens, c)
}

func (b *Broker) handoff(c Conn, p *world.Player) {
	b.bind(c, p)
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CONNECT_RESPONSE)
	w.WriteUint8(packet.ResultOK)
	c.Send(w.Bytes())
}
