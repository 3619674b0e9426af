package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/tmwgo/server/internal/net/packet"
	"github.com/tmwgo/server/internal/world"
)

type fakeConn struct {
	name   string
	sent   [][]byte
	closed bool
}

func (c *fakeConn) Send(data []byte) { c.sent = append(c.sent, data) }
func (c *fakeConn) IsClosed() bool   { return c.closed }

type binding struct {
	conn   Conn
	player *world.Player
}

type harness struct {
	broker *Broker
	binds  []binding
}

func newHarness(t testing.TB) *harness {
	h := &harness{}
	log := zaptest.NewLogger(t)
	h.broker = NewBroker(func(c Conn, p *world.Player) {
		h.binds = append(h.binds, binding{conn: c, player: p})
	}, log)
	return h
}

var connectOK = []byte{0x51, 0x00, packet.ResultOK}

func token(s string) string {
	t := s
	for len(t) < TokenLength {
		t += "0"
	}
	return t
}

func TestAuthorizeThenPresent(t *testing.T) {
	h := newHarness(t)
	c := &fakeConn{name: "c"}
	p := world.NewPlayer(1, "Ada", 1, 0, 0)

	h.broker.Authorize(token("a"), p)
	assert.Equal(t, 1, h.broker.PendingLogins())
	assert.Empty(t, c.sent)

	res := h.broker.PresentToken(c, token("a"))
	assert.Equal(t, ResultAuthenticated, res)
	require.Len(t, h.binds, 1)
	assert.Same(t, p, h.binds[0].player)
	assert.Equal(t, [][]byte{connectOK}, c.sent)
	assert.Zero(t, h.broker.PendingLogins())
	assert.Zero(t, h.broker.PendingClients())
}

func TestPresentThenAuthorize(t *testing.T) {
	h := newHarness(t)
	c := &fakeConn{name: "c"}
	p := world.NewPlayer(1, "Ada", 1, 0, 0)

	res := h.broker.PresentToken(c, token("a"))
	assert.Equal(t, ResultAwaiting, res)
	assert.Empty(t, c.sent, "nothing is sent while waiting")
	assert.Equal(t, 1, h.broker.PendingClients())

	h.broker.Authorize(token("a"), p)
	require.Len(t, h.binds, 1)
	assert.Same(t, c, h.binds[0].conn)
	assert.Equal(t, [][]byte{connectOK}, c.sent)
	assert.Zero(t, h.broker.PendingLogins())
	assert.Zero(t, h.broker.PendingClients())
}

func TestTokenIsSingleUse(t *testing.T) {
	h := newHarness(t)
	first, second := &fakeConn{name: "1"}, &fakeConn{name: "2"}
	h.broker.Authorize(token("a"), world.NewPlayer(1, "Ada", 1, 0, 0))

	assert.Equal(t, ResultAuthenticated, h.broker.PresentToken(first, token("a")))
	assert.Equal(t, ResultAwaiting, h.broker.PresentToken(second, token("a")))
	assert.Empty(t, second.sent)
	assert.Len(t, h.binds, 1)
}

func TestWaitingConnectionIgnoresFurtherTokens(t *testing.T) {
	h := newHarness(t)
	c := &fakeConn{}
	h.broker.Authorize(token("b"), world.NewPlayer(2, "Bo", 1, 0, 0))

	assert.Equal(t, ResultAwaiting, h.broker.PresentToken(c, token("a")))
	assert.Equal(t, ResultIgnored, h.broker.PresentToken(c, token("b")))
	assert.Empty(t, h.binds)
	assert.Equal(t, 1, h.broker.PendingLogins(), "b stays claimable")
	assert.Equal(t, 1, h.broker.PendingClients())
}

func TestSecondConnectionWithSameTokenIsIgnored(t *testing.T) {
	h := newHarness(t)
	first, second := &fakeConn{name: "1"}, &fakeConn{name: "2"}

	assert.Equal(t, ResultAwaiting, h.broker.PresentToken(first, token("a")))
	assert.Equal(t, ResultIgnored, h.broker.PresentToken(second, token("a")))

	h.broker.Authorize(token("a"), world.NewPlayer(1, "Ada", 1, 0, 0))
	require.Len(t, h.binds, 1)
	assert.Same(t, first, h.binds[0].conn)
	assert.Empty(t, second.sent)
}

func TestAuthorizeSkipsClosedWaitingConnection(t *testing.T) {
	h := newHarness(t)
	dead := &fakeConn{name: "dead"}
	require.Equal(t, ResultAwaiting, h.broker.PresentToken(dead, token("a")))
	dead.closed = true

	p := world.NewPlayer(1, "Ada", 1, 0, 0)
	h.broker.Authorize(token("a"), p)
	assert.Empty(t, h.binds)
	assert.Empty(t, dead.sent)
	assert.Zero(t, h.broker.PendingClients())
	assert.Equal(t, 1, h.broker.PendingLogins())

	// the reconnect claims the kept authorization
	again := &fakeConn{name: "again"}
	assert.Equal(t, ResultAuthenticated, h.broker.PresentToken(again, token("a")))
	require.Len(t, h.binds, 1)
	assert.Same(t, p, h.binds[0].player)
	assert.Equal(t, [][]byte{connectOK}, again.sent)
}

func TestPresentTokenReplacesClosedWaitingConnection(t *testing.T) {
	h := newHarness(t)
	dead := &fakeConn{name: "dead"}
	h.broker.PresentToken(dead, token("a"))
	dead.closed = true

	again := &fakeConn{name: "again"}
	assert.Equal(t, ResultAwaiting, h.broker.PresentToken(again, token("a")))
	assert.Equal(t, 1, h.broker.PendingClients())

	h.broker.Authorize(token("a"), world.NewPlayer(1, "Ada", 1, 0, 0))
	assert.Equal(t, [][]byte{connectOK}, again.sent)
	assert.Empty(t, dead.sent)

	// reaping the dead connection later is harmless
	h.broker.OnDisconnect(dead)
	assert.Zero(t, h.broker.PendingClients())
}

func TestSweepExpiresAfterBudget(t *testing.T) {
	h := newHarness(t)
	p := world.NewPlayer(1, "Ada", 1, 0, 0)
	h.broker.Authorize(token("a"), p)

	for i := 0; i < PendingLoginTicks-1; i++ {
		assert.Empty(t, h.broker.SweepExpired())
	}
	assert.Equal(t, 1, h.broker.PendingLogins())

	expired := h.broker.SweepExpired()
	assert.Equal(t, []*world.Player{p}, expired)
	assert.Zero(t, h.broker.PendingLogins())

	c := &fakeConn{}
	assert.Equal(t, ResultAwaiting, h.broker.PresentToken(c, token("a")))
	assert.Empty(t, c.sent)
}

func TestClaimOnLastTickSucceeds(t *testing.T) {
	h := newHarness(t)
	h.broker.Authorize(token("a"), world.NewPlayer(1, "Ada", 1, 0, 0))
	for i := 0; i < PendingLoginTicks-1; i++ {
		h.broker.SweepExpired()
	}

	c := &fakeConn{}
	assert.Equal(t, ResultAuthenticated, h.broker.PresentToken(c, token("a")))
	assert.Empty(t, h.broker.SweepExpired())
}

func TestSweepLeavesPendingClients(t *testing.T) {
	h := newHarness(t)
	h.broker.PresentToken(&fakeConn{}, token("a"))
	for i := 0; i < PendingLoginTicks*2; i++ {
		h.broker.SweepExpired()
	}
	assert.Equal(t, 1, h.broker.PendingClients())
}

func TestOnDisconnect(t *testing.T) {
	h := newHarness(t)
	waiting := &fakeConn{name: "waiting"}
	stranger := &fakeConn{name: "stranger"}

	h.broker.PresentToken(waiting, token("a"))
	h.broker.Authorize(token("b"), world.NewPlayer(2, "Bo", 1, 0, 0))

	h.broker.OnDisconnect(stranger)
	assert.Equal(t, 1, h.broker.PendingClients())

	h.broker.OnDisconnect(waiting)
	assert.Zero(t, h.broker.PendingClients())
	assert.Equal(t, 1, h.broker.PendingLogins(), "pending logins survive disconnects")

	// a later authorization for the abandoned token parks as a pending login
	h.broker.Authorize(token("a"), world.NewPlayer(1, "Ada", 1, 0, 0))
	assert.Empty(t, h.binds)
	assert.Equal(t, 2, h.broker.PendingLogins())
}

func TestReauthorizeReplacesPendingLogin(t *testing.T) {
	h := newHarness(t)
	newer := world.NewPlayer(2, "Bo", 1, 0, 0)
	h.broker.Authorize(token("a"), world.NewPlayer(1, "Ada", 1, 0, 0))
	h.broker.Authorize(token("a"), newer)
	assert.Equal(t, 1, h.broker.PendingLogins())

	h.broker.PresentToken(&fakeConn{}, token("a"))
	require.Len(t, h.binds, 1)
	assert.Same(t, newer, h.binds[0].player)
}

// Whatever order authorizations and connects arrive in, each token whose
// two halves both arrive binds exactly once, and the tables end up empty.
func TestHandoffIsOrderIndependent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		n := rapid.IntRange(1, 8).Draw(rt, "tokens")

		type step struct {
			authorize bool
			idx       int
		}
		steps := make([]step, 0, 2*n)
		for i := 0; i < n; i++ {
			steps = append(steps, step{true, i}, step{false, i})
		}
		order := rapid.Permutation(steps).Draw(rt, "order")

		conns := make([]*fakeConn, n)
		players := make([]*world.Player, n)
		for i := range conns {
			conns[i] = &fakeConn{}
			players[i] = world.NewPlayer(int64(i+1), "p", 1, 0, 0)
		}
		for _, s := range order {
			tok := token(string(rune('a' + s.idx)))
			if s.authorize {
				h.broker.Authorize(tok, players[s.idx])
			} else {
				h.broker.PresentToken(conns[s.idx], tok)
			}
		}

		if len(h.binds) != n {
			rt.Fatalf("got %d binds, want %d", len(h.binds), n)
		}
		for _, b := range h.binds {
			c := b.conn.(*fakeConn)
			idx := -1
			for i := range conns {
				if conns[i] == c {
					idx = i
				}
			}
			if players[idx] != b.player {
				rt.Fatalf("connection %d bound to the wrong character", idx)
			}
			if len(c.sent) != 1 {
				rt.Fatalf("connection %d got %d responses", idx, len(c.sent))
			}
		}
		if h.broker.PendingLogins() != 0 || h.broker.PendingClients() != 0 {
			rt.Fatalf("tables not drained: %d logins, %d clients",
				h.broker.PendingLogins(), h.broker.PendingClients())
		}
	})
}

func TestNewToken(t *testing.T) {
	a, b := NewToken(), NewToken()
	assert.True(t, ValidToken(a))
	assert.Len(t, a, TokenLength)
	assert.NotEqual(t, a, b)
	assert.False(t, ValidToken("short"))
}
