package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Database)
	assert.Equal(t, "{xcall}:", cfg.Database.Redis.KeyPrefix)
	assert.Equal(t, time.Second, cfg.Devnet.BlockInterval.Duration)
	assert.Equal(t, "0x3.icon", cfg.Devnet.ChainA.NetworkID)
	assert.Equal(t, "icon-local", cfg.Devnet.ChainA.ChainID)
	assert.Equal(t, []string{"xcall-connection"}, cfg.Devnet.ChainB.Connections)
	assert.Equal(t, uint64(100), cfg.Devnet.ChainB.TimeoutHeight)
	assert.Equal(t, 500*time.Millisecond, cfg.Devnet.Relayer.PollInterval.Duration)
	assert.Equal(t, 1024, cfg.Devnet.Relayer.CacheSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xcall.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[Database]
Database = "goleveldb"

[Devnet.ChainB]
NetworkID = "archway-2"
Connections = ["conn-1", "conn-2"]

[Devnet.ChainA]
Connections = ["conn-1", "conn-2"]
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "goleveldb", cfg.Database.Database)
	assert.Equal(t, "archway-2", cfg.Devnet.ChainB.NetworkID)
	assert.Equal(t, "0x3.icon", cfg.Devnet.ChainA.NetworkID)
	assert.Len(t, cfg.Devnet.ChainA.Connections, 2)
}

func TestLoadRejectsUnevenConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xcall.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[Devnet.ChainA]
Connections = ["conn-1", "conn-2"]
`), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsSharedNetworkID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xcall.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[Devnet.ChainB]
NetworkID = "0x3.icon"
`), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("XCALL_DEVNET_ADMIN", "operator")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "operator", cfg.Devnet.Admin)
}
