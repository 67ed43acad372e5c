package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const PresenceKey = "lounge:presence"

// RedisPresence mirrors the online set into a redis hash of userId -> name.
type RedisPresence struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

func NewRedisPresence(ctx context.Context, addr, password string, db int) (*RedisPresence, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", addr, err)
	}
	return newRedisPresence(ctx, rdb)
}

func newRedisPresence(ctx context.Context, rdb *redis.Client) (*RedisPresence, error) {
	p := &RedisPresence{client: rdb, key: PresenceKey, timeout: 2 * time.Second}
	// a fresh process starts with nobody online
	if err := rdb.Del(ctx, p.key).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reset %s: %w", p.key, err)
	}
	return p, nil
}

func (p *RedisPresence) Name() string { return "redis" }

func (p *RedisPresence) Handle(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	switch ev.Kind {
	case KindUserOnline:
		return p.client.HSet(ctx, p.key, ev.User.ID, ev.User.Name).Err()
	case KindUserOffline:
		return p.client.HDel(ctx, p.key, ev.User.ID).Err()
	}
	return nil
}

func (p *RedisPresence) Close() error {
	return p.client.Close()
}
