package db

import "context"

// prefixStorage namespaces every key of an underlying Storage
type prefixStorage struct {
	prefix []byte
	inner  Storage
}

// NewPrefixStorage returns a view of inner where every key is prefixed.
// Closing the view does not close inner.
func NewPrefixStorage(inner Storage, prefix string) Storage {
	return &prefixStorage{prefix: []byte(prefix), inner: inner}
}

func (s *prefixStorage) key(k []byte) []byte {
	res := make([]byte, 0, len(s.prefix)+len(k))
	res = append(res, s.prefix...)
	return append(res, k...)
}

func (s *prefixStorage) Get(ctx context.Context, key []byte) ([]byte, error) {
	return s.inner.Get(ctx, s.key(key))
}

func (s *prefixStorage) Write(ctx context.Context, batch []KV) error {
	prefixed := make([]KV, len(batch))
	for i, kv := range batch {
		prefixed[i] = KV{Key: s.key(kv.Key), Value: kv.Value}
	}
	return s.inner.Write(ctx, prefixed)
}

func (s *prefixStorage) Close() error {
	return nil
}
