package redisstorage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStorage is a key-value store on top of redis
type RedisStorage interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Write applies the batch atomically. A nil value deletes the key.
	Write(ctx context.Context, keys, values [][]byte) error
	Close() error
}

type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Close() error
}
