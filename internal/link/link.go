// Package link carries login authorizations from the account server to the
// game server. The account server publishes; the game server's subscriber
// loads the character off the game loop and hands the loop a ready Grant.
package link

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tmwgo/server/internal/world"
)

// Authorization is the inter-process message: the holder of Token may play
// CharacterID.
type Authorization struct {
	Token       string    `json:"token"`
	CharacterID int64     `json:"character_id"`
	Account     string    `json:"account"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Grant is an Authorization with its character loaded, ready for the broker.
type Grant struct {
	Token  string
	Player *world.Player
}

// Loader fetches a character by ID.
type Loader interface {
	Load(ctx context.Context, id int64) (*world.Player, error)
}

// Publisher sends authorizations towards a game server.
type Publisher interface {
	Publish(ctx context.Context, a Authorization) error
}

// Subscriber receives authorizations and turns them into grants.
type Subscriber interface {
	// Run blocks until ctx is cancelled.
	Run(ctx context.Context) error
	// Grants is drained by the game loop each tick.
	Grants() <-chan Grant
}

// grantQueue is shared by both transports: resolve an authorization into a
// grant and queue it without ever blocking past ctx.
type grantQueue struct {
	loader Loader
	out    chan Grant
	log    *zap.Logger
}

func newGrantQueue(loader Loader, size int, log *zap.Logger) grantQueue {
	if size <= 0 {
		size = 64
	}
	return grantQueue{loader: loader, out: make(chan Grant, size), log: log}
}

func (q grantQueue) Grants() <-chan Grant { return q.out }

func (q grantQueue) resolve(ctx context.Context, a Authorization) {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	p, err := q.loader.Load(loadCtx, a.CharacterID)
	cancel()
	if err != nil {
		q.log.Warn("授權角色載入失敗，丟棄",
			zap.Int64("character", a.CharacterID),
			zap.String("account", a.Account),
			zap.Error(err),
		)
		return
	}
	select {
	case q.out <- Grant{Token: a.Token, Player: p}:
	case <-ctx.Done():
	}
}
