package host

import (
	"context"
	"errors"
	"sort"

	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/utils/gerror"
)

// Store is the key-value storage visible to a contract during one entry.
// Writes become durable only when the whole transaction succeeds.
type Store interface {
	// Get returns nil when key is missing
	Get(key []byte) []byte
	Set(key, value []byte)
	Delete(key []byte)
}

type reader interface {
	read(key string) ([]byte, bool)
}

type entry struct {
	value   []byte
	deleted bool
}

// cacheStore buffers writes on top of a parent reader. Branches of a
// cacheStore are merged back with writeTo.
type cacheStore struct {
	parent reader
	writes map[string]entry
}

func newCacheStore(parent reader) *cacheStore {
	return &cacheStore{parent: parent, writes: make(map[string]entry)}
}

func (s *cacheStore) read(key string) ([]byte, bool) {
	if e, ok := s.writes[key]; ok {
		if e.deleted {
			return nil, false
		}
		return e.value, true
	}
	return s.parent.read(key)
}

func (s *cacheStore) Get(key []byte) []byte {
	value, ok := s.read(string(key))
	if !ok {
		return nil
	}
	return copyBytes(value)
}

func (s *cacheStore) Set(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	s.writes[string(key)] = entry{value: copyBytes(value)}
}

func (s *cacheStore) Delete(key []byte) {
	s.writes[string(key)] = entry{deleted: true}
}

func (s *cacheStore) branch() *cacheStore {
	return newCacheStore(s)
}

func (s *cacheStore) writeTo(parent *cacheStore) {
	for k, e := range s.writes {
		parent.writes[k] = e
	}
}

// batch returns the buffered writes sorted by key
func (s *cacheStore) batch() []db.KV {
	keys := make([]string, 0, len(s.writes))
	for k := range s.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := make([]db.KV, 0, len(keys))
	for _, k := range keys {
		e := s.writes[k]
		kv := db.KV{Key: []byte(k)}
		if !e.deleted {
			kv.Value = e.value
		}
		batch = append(batch, kv)
	}
	return batch
}

// backendReader reads through to durable storage. The first backend failure
// is kept and fails the transaction when it finishes.
type backendReader struct {
	ctx     context.Context
	storage db.Storage
	err     error
}

func (r *backendReader) read(key string) ([]byte, bool) {
	value, err := r.storage.Get(r.ctx, []byte(key))
	if errors.Is(err, gerror.ErrStorageNotFound) {
		return nil, false
	}
	if err != nil {
		if r.err == nil {
			r.err = err
		}
		return nil, false
	}
	return value, true
}

type prefixStore struct {
	prefix []byte
	inner  Store
}

// PrefixStore returns a view of inner where every key is namespaced by prefix
func PrefixStore(inner Store, prefix string) Store {
	return &prefixStore{prefix: []byte(prefix), inner: inner}
}

func (s *prefixStore) key(k []byte) []byte {
	res := make([]byte, 0, len(s.prefix)+len(k))
	res = append(res, s.prefix...)
	return append(res, k...)
}

func (s *prefixStore) Get(key []byte) []byte {
	return s.inner.Get(s.key(key))
}

func (s *prefixStore) Set(key, value []byte) {
	s.inner.Set(s.key(key), value)
}

func (s *prefixStore) Delete(key []byte) {
	s.inner.Delete(s.key(key))
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	res := make([]byte, len(b))
	copy(res, b)
	return res
}

// NewMemStore returns a standalone Store backed by memory. Intended for
// exercising contract state helpers outside of a Chain.
func NewMemStore() Store {
	return newCacheStore(emptyReader{})
}

type emptyReader struct{}

func (emptyReader) read(string) ([]byte, bool) {
	return nil, false
}
