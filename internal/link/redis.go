package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// blockTimeout bounds each BLPOP so cancellation is noticed promptly.
const blockTimeout = time.Second

// Key returns the Redis list a game server drains.
func Key(prefix, serverName string) string {
	return prefix + ":" + serverName
}

// RedisPublisher pushes authorizations onto a Redis list.
type RedisPublisher struct {
	client *redis.Client
	key    string
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client, key string) *RedisPublisher {
	return &RedisPublisher{client: client, key: key}
}

func (p *RedisPublisher) Publish(ctx context.Context, a Authorization) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal authorization: %w", err)
	}
	if err := p.client.RPush(ctx, p.key, data).Err(); err != nil {
		return fmt.Errorf("push authorization: %w", err)
	}
	return nil
}

// RedisSubscriber pops authorizations from a Redis list. Each entry is
// delivered to at most one subscriber.
type RedisSubscriber struct {
	grantQueue
	client *redis.Client
	key    string
}

var _ Subscriber = (*RedisSubscriber)(nil)

func NewRedisSubscriber(client *redis.Client, key string, loader Loader, size int, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{
		grantQueue: newGrantQueue(loader, size, log),
		client:     client,
		key:        key,
	}
}

func (s *RedisSubscriber) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := s.client.BLPop(ctx, blockTimeout, s.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("讀取授權佇列失敗", zap.Error(err))
			select {
			case <-time.After(blockTimeout):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		// res = [key, value]
		var a Authorization
		if err := json.Unmarshal([]byte(res[1]), &a); err != nil {
			s.log.Warn("授權訊息格式錯誤，丟棄", zap.Error(err))
			continue
		}
		s.resolve(ctx, a)
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string, poolSize int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	return redis.NewClient(opts), nil
}
