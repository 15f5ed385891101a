package db

import (
	"context"

	"github.com/0xPolygonHermez/zkevm-xcall/utils/gerror"
	dbm "github.com/cometbft/cometbft-db"
)

// kvStorage adapts a cometbft-db database
type kvStorage struct {
	db dbm.DB
}

// NewMemoryStorage returns a volatile in-memory Storage
func NewMemoryStorage() Storage {
	return &kvStorage{db: dbm.NewMemDB()}
}

// NewGoLevelDBStorage opens (or creates) a goleveldb database under dir
func NewGoLevelDBStorage(name, dir string) (Storage, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return nil, err
	}
	return &kvStorage{db: db}, nil
}

func (s *kvStorage) Get(_ context.Context, key []byte) ([]byte, error) {
	value, err := s.db.Get(key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, gerror.ErrStorageNotFound
	}
	return value, nil
}

func (s *kvStorage) Write(_ context.Context, batch []KV) error {
	b := s.db.NewBatch()
	defer b.Close()
	for _, kv := range batch {
		var err error
		if kv.Value == nil {
			err = b.Delete(kv.Key)
		} else {
			err = b.Set(kv.Key, kv.Value)
		}
		if err != nil {
			return err
		}
	}
	return b.WriteSync()
}

func (s *kvStorage) Close() error {
	return s.db.Close()
}
