package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Challenge.ShardCount)
	assert.Equal(t, 2, cfg.Challenge.NodesPerShard)
	assert.Equal(t, 3000*time.Second, cfg.Challenge.TokenTTL)
	assert.Equal(t, 30, cfg.Ledger.SamplePercentage)
	assert.Equal(t, 1, cfg.Ledger.Difficulty)
	assert.Zero(t, cfg.Ledger.MinQuorum)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chain:
  mode: simulated
ledger:
  difficulty: 2
  minQuorum: 1
challenge:
  shardCount: 4
`), 0o600))
	t.Setenv("CHALLENGE_SHARD_COUNT", "5")
	t.Setenv("STORAGE_DIR", "/var/lib/shardauth")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ChainModeSimulated, cfg.Chain.Mode)
	assert.Equal(t, 2, cfg.Ledger.Difficulty)
	assert.Equal(t, 1, cfg.Ledger.MinQuorum)
	assert.Equal(t, 5, cfg.Challenge.ShardCount)
	assert.Equal(t, "/var/lib/shardauth", cfg.Storage.Directory)
	assert.Equal(t, 2, cfg.Challenge.NodesPerShard)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("CHAIN_MODE", "carrier-pigeon")
		t.Setenv("CHALLENGE_SHARD_COUNT", "0")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chain.mode")
		assert.Contains(t, err.Error(), "shardCount")
	})
}
