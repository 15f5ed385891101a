package redisstorage

import (
	"context"

	"github.com/0xPolygonHermez/zkevm-xcall/utils/gerror"
	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "{xcall}:"

// redisStorageImpl implements RedisStorage interface
type redisStorageImpl struct {
	client RedisClient
	prefix string
}

func NewRedisStorage(cfg Config) (RedisStorage, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis address is empty")
	}
	var client RedisClient
	if cfg.IsClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addrs[0],
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	res, err := client.Ping(context.Background()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to redis server")
	}
	log.Debugf("redis health check done, result: %v", res)
	return newRedisStorage(client, cfg.KeyPrefix), nil
}

func newRedisStorage(client RedisClient, prefix string) *redisStorageImpl {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &redisStorageImpl{client: client, prefix: prefix}
}

func (s *redisStorageImpl) key(k []byte) string {
	return s.prefix + string(k)
}

func (s *redisStorageImpl) Get(ctx context.Context, key []byte) ([]byte, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("redis client is nil")
	}
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gerror.ErrStorageNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis Get error")
	}
	return value, nil
}

func (s *redisStorageImpl) Write(ctx context.Context, keys, values [][]byte) error {
	log.Debugf("redis Write size[%v]", len(keys))
	if s == nil || s.client == nil {
		return errors.New("redis client is nil")
	}
	if len(keys) != len(values) {
		return errors.Errorf("redis Write keys[%d] values[%d] mismatch", len(keys), len(values))
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			if values[i] == nil {
				pipe.Del(ctx, s.key(k))
				continue
			}
			pipe.Set(ctx, s.key(k), values[i], 0)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "redis TxPipelined error")
	}
	return nil
}

func (s *redisStorageImpl) Close() error {
	return s.client.Close()
}
