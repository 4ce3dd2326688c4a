package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	lockTTL      = 30 * time.Second
	// lockAttempts bounds how long Lock waits when ctx has no deadline.
	lockAttempts = 500
)

// RedisOptions configures a RedisKV.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key, e.g. "budgeteer:".
	Prefix string
}

// RedisKV stores values as plain Redis strings and locks keys with
// redislock under <prefix><key>:lock.
type RedisKV struct {
	client *redis.Client
	locker *redislock.Client
	prefix string
}

// NewRedisKV connects and pings the server before returning.
func NewRedisKV(ctx context.Context, opts RedisOptions) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &RedisKV{client: client, locker: redislock.New(client), prefix: opts.Prefix}, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyMissing
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisKV) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := r.locker.Obtain(ctx, r.prefix+key+":lock", lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetry), lockAttempts),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", key, err)
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
