package redisstorage

import (
	"context"
	"os"
	"testing"

	"github.com/0xPolygonHermez/zkevm-xcall/utils/gerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisStorageNoAddress(t *testing.T) {
	_, err := NewRedisStorage(Config{})
	require.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	s := newRedisStorage(nil, "")
	assert.Equal(t, "{xcall}:abc", s.key([]byte("abc")))
	s = newRedisStorage(nil, "{chain-a}:")
	assert.Equal(t, "{chain-a}:abc", s.key([]byte("abc")))
}

func TestRedisStorage(t *testing.T) {
	addr, ok := os.LookupEnv("XCALL_REDIS_ADDR")
	if !ok {
		t.Skip("XCALL_REDIS_ADDR not set")
	}
	s, err := NewRedisStorage(Config{Addrs: []string{addr}, KeyPrefix: "{xcall-test}:"})
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, [][]byte{[]byte("a"), []byte("b")}, [][]byte{[]byte("1"), []byte("2")}))
	value, err := s.Get(ctx, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	require.NoError(t, s.Write(ctx, [][]byte{[]byte("a")}, [][]byte{nil}))
	_, err = s.Get(ctx, []byte("a"))
	require.ErrorIs(t, err, gerror.ErrStorageNotFound)

	require.Error(t, s.Write(ctx, [][]byte{[]byte("a")}, nil))
}
