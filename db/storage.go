package db

import (
	"context"

	"github.com/0xPolygonHermez/zkevm-xcall/db/pgstorage"
	"github.com/0xPolygonHermez/zkevm-xcall/redisstorage"
	"github.com/0xPolygonHermez/zkevm-xcall/utils/gerror"
	"github.com/0xPolygonHermez/zkevm-node/log"
)

// Storage backend types
const (
	MemoryDatabase    = "memory"
	GoLevelDBDatabase = "goleveldb"
	PostgresDatabase  = "postgres"
	RedisDatabase     = "redis"
)

// KV is one write of a batch. A nil Value deletes the key.
type KV struct {
	Key   []byte
	Value []byte
}

// Storage interface
type Storage interface {
	// Get returns gerror.ErrStorageNotFound when key is missing
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Write applies the batch atomically
	Write(ctx context.Context, batch []KV) error
	Close() error
}

// NewStorage creates a new Storage
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Database {
	case MemoryDatabase, "":
		return NewMemoryStorage(), nil
	case GoLevelDBDatabase:
		return NewGoLevelDBStorage(cfg.Name, cfg.Dir)
	case PostgresDatabase:
		pg, err := pgstorage.NewPostgresStorage(cfg.postgres())
		if err != nil {
			return nil, err
		}
		return &postgresStorage{pg: pg}, nil
	case RedisDatabase:
		rs, err := redisstorage.NewRedisStorage(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &redisStorage{rs: rs}, nil
	}
	return nil, gerror.ErrStorageNotRegister
}

// RunMigrations will execute pending migrations if needed to keep
// the database updated with the latest changes
func RunMigrations(cfg Config) error {
	if cfg.Database != PostgresDatabase {
		return nil
	}
	return pgstorage.RunMigrations(cfg.postgres())
}

type postgresStorage struct {
	pg *pgstorage.PostgresStorage
}

func (s *postgresStorage) Get(ctx context.Context, key []byte) ([]byte, error) {
	return s.pg.Get(ctx, key, nil)
}

func (s *postgresStorage) Write(ctx context.Context, batch []KV) (err error) {
	dbTx, err := s.pg.BeginDBTransaction(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := s.pg.Rollback(ctx, dbTx); rollbackErr != nil {
				log.Errorf("error rolling back storage batch: %v", rollbackErr)
			}
		}
	}()
	for _, kv := range batch {
		if kv.Value == nil {
			err = s.pg.Delete(ctx, kv.Key, dbTx)
		} else {
			err = s.pg.Set(ctx, kv.Key, kv.Value, dbTx)
		}
		if err != nil {
			return err
		}
	}
	return s.pg.Commit(ctx, dbTx)
}

func (s *postgresStorage) Close() error {
	s.pg.Close()
	return nil
}

type redisStorage struct {
	rs redisstorage.RedisStorage
}

func (s *redisStorage) Get(ctx context.Context, key []byte) ([]byte, error) {
	return s.rs.Get(ctx, key)
}

func (s *redisStorage) Write(ctx context.Context, batch []KV) error {
	keys := make([][]byte, len(batch))
	values := make([][]byte, len(batch))
	for i, kv := range batch {
		keys[i] = kv.Key
		values[i] = kv.Value
	}
	return s.rs.Write(ctx, keys, values)
}

func (s *redisStorage) Close() error {
	return s.rs.Close()
}
