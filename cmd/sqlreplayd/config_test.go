package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anacrolix/sqlreplay"
	"github.com/anacrolix/sqlreplay/cache"
	"github.com/anacrolix/sqlreplay/dbsql"
)

func writeConfig(t *testing.T, s string) string {
	path := filepath.Join(t.TempDir(), "sqlreplayd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(s), 0o644))
	return path
}

func TestLoadConfigOverDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
mode: replay
cache:
  kind: disk
  dir: /tmp/recorded
`))
	require.NoError(t, err)
	assert.Equal(t, ModeReplay, cfg.Mode)
	assert.Equal(t, CacheDisk, cfg.Cache.Kind)
	assert.Equal(t, "/tmp/recorded", cfg.Cache.Dir)
	assert.Equal(t, 2, cfg.Cache.FolderDepth)
	assert.Equal(t, ":6033", cfg.Addr)
	require.NoError(t, cfg.Validate())

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(writeConfig(t, "mode: [live"))
	assert.Error(t, err)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, f := range []func(*Config){
		func(c *Config) { c.Mode = "record" },
		func(c *Config) { c.Cache.Kind = "s3" },
		func(c *Config) { c.Cache.Kind = CacheDisk; c.Cache.FolderDepth = 0 },
		func(c *Config) { c.Cache.Kind = CacheDisk; c.Cache.Dir = "" },
		func(c *Config) { c.Driver = "" },
		func(c *Config) { c.Addr = "" },
	} {
		cfg := DefaultConfig()
		f(&cfg)
		assert.Error(t, cfg.Validate(), "%+v", cfg)
	}
	cfg := DefaultConfig()
	cfg.Mode = ModeReplay
	cfg.Driver = ""
	assert.NoError(t, cfg.Validate())
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "addr: localhost:1\nmode: replay\n")
	cfg, err := loadConfig([]string{
		"--config", path,
		"--mode", "passthrough",
		"--cache", "redis",
		"--redis", "redis:6380",
		"--conn", "file:x.db",
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:1", cfg.Addr)
	assert.Equal(t, ModePassthrough, cfg.Mode)
	assert.Equal(t, CacheRedis, cfg.Cache.Kind)
	assert.Equal(t, "redis:6380", cfg.Cache.Redis.Addr)
	assert.Equal(t, "file:x.db", cfg.ConnectionString)
}

func TestNewBackend(t *testing.T) {
	b, err := newBackend(CacheConfig{Kind: CacheMemory})
	require.NoError(t, err)
	assert.IsType(t, &cache.Memory{}, b)
	b, err = newBackend(CacheConfig{Kind: CacheDisk, Dir: t.TempDir(), FolderDepth: 1})
	require.NoError(t, err)
	assert.IsType(t, &cache.Disk{}, b)
	mr := miniredis.RunT(t)
	b, err = newBackend(CacheConfig{Kind: CacheRedis, Redis: RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	require.IsType(t, &cache.Redis{}, b)
	assert.NoError(t, b.(*cache.Redis).Close())
}

func TestNewDriver(t *testing.T) {
	c := cache.New(cache.NewMemory())
	cfg := DefaultConfig()
	cfg.Mode = ModePassthrough
	d, ok := newDriver(cfg, c).(*dbsql.Driver)
	require.True(t, ok)
	assert.Equal(t, "main", d.Database(""))
	cfg.Mode = ModeLive
	assert.IsType(t, sqlreplay.Recording(d, c), newDriver(cfg, c))
	cfg.Mode = ModeReplay
	assert.IsType(t, sqlreplay.Replaying(c), newDriver(cfg, c))
	assert.True(t, driverRegistered("sqlite3"))
	assert.False(t, driverRegistered("oracle"))
}
