package cron

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jaujye/ocean-shopping-center/pkg/redis"
)

// Locker guards a named job so only one worker instance runs it at a time.
type Locker interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (release func(context.Context), acquired bool, err error)
}

type redisLock struct {
	client *redis.Client
	owner  string
}

// NewRedisLock builds a distributed lock on SETNX with a TTL. The owner token
// prevents one instance from releasing a lock another instance re-acquired
// after the TTL lapsed.
func NewRedisLock(client *redis.Client, owner string) (Locker, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if owner == "" {
		return nil, errors.New("lock owner token required")
	}
	return &redisLock{client: client, owner: owner}, nil
}

func (l *redisLock) Acquire(ctx context.Context, job string, ttl time.Duration) (func(context.Context), bool, error) {
	key := redis.Key("cron", "lock", job)
	acquired, err := l.client.SetNX(ctx, key, l.owner, ttl)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	release := func(releaseCtx context.Context) {
		current, err := l.client.Get(releaseCtx, key)
		if err != nil {
			if !errors.Is(err, goredis.Nil) {
				return
			}
			return
		}
		if current != l.owner {
			return
		}
		_ = l.client.Del(releaseCtx, key)
	}
	return release, true, nil
}
