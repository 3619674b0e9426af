package link

import (
	"context"

	"go.uber.org/zap"
)

// Channel is the in-process transport used when both servers share one
// process. Authorizations still cross goroutines as messages.
type Channel struct {
	grantQueue
	in chan Authorization
}

var (
	_ Publisher  = (*Channel)(nil)
	_ Subscriber = (*Channel)(nil)
)

func NewChannel(loader Loader, size int, log *zap.Logger) *Channel {
	q := newGrantQueue(loader, size, log)
	return &Channel{grantQueue: q, in: make(chan Authorization, cap(q.out))}
}

func (c *Channel) Publish(ctx context.Context, a Authorization) error {
	select {
	case c.in <- a:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) Run(ctx context.Context) error {
	for {
		select {
		case a := <-c.in:
			c.resolve(ctx, a)
		case <-ctx.Done():
			return nil
		}
	}
}
