package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"digests-builder/core/batch"
	coreconfig "digests-builder/core/config"
	"digests-builder/core/interfaces"
	"digests-builder/infrastructure/cache/memory"
	"digests-builder/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlags_OnlyChangedFlagsWin(t *testing.T) {
	code := batch.ExitOK
	cmd := newRootCmd(&code)
	require.NoError(t, cmd.ParseFlags([]string{"--feeds", "mine.toml", "--mode", "none"}))

	cfg := &config.Config{Run: config.RunConfig{FeedsConfig: "env.toml", OutputFile: "env.json", Mode: "full"}}
	applyFlags(cmd, cliFlags{feeds: "mine.toml", mode: "none"}, cfg)

	assert.Equal(t, "mine.toml", cfg.Run.FeedsConfig)
	assert.Equal(t, "none", cfg.Run.Mode)
	assert.Equal(t, "env.json", cfg.Run.OutputFile)
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	code := batch.ExitOK
	cmd := newRootCmd(&code)
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestRootCmd_InvalidConfigurationIsFatal(t *testing.T) {
	os.Clearenv()
	code := batch.ExitOK
	cmd := newRootCmd(&code)
	cmd.SetArgs([]string{"--env-file", "", "--mode", "sometimes"})

	assert.Error(t, cmd.Execute())
	assert.Equal(t, batch.ExitFatal, code)
}

func TestRootCmd_NoFetchRunFromEmptyCache(t *testing.T) {
	os.Clearenv()
	dir := t.TempDir()
	feeds := filepath.Join(dir, "feeds.toml")
	output := filepath.Join(dir, "digest.json")
	require.NoError(t, os.WriteFile(feeds, []byte("[[feeds]]\nurl = \"https://example.com/feed.xml\"\n"), 0o644))
	os.Setenv("CACHE_TYPE", "memory")

	code := -1
	cmd := newRootCmd(&code)
	cmd.SetArgs([]string{"--env-file", "", "--feeds", feeds, "--output", output, "--mode", "none", "--log-level", "error"})

	require.NoError(t, cmd.Execute())
	// nothing cached, so no feed could be processed
	assert.Equal(t, batch.ExitNoFeeds, code)
	assert.FileExists(t, output)
}

func TestRunOnce_MissingConfigIsFatal(t *testing.T) {
	logger := interfaces.NopLogger{}
	deps := interfaces.Dependencies{Cache: memory.NewMemoryCache(), Logger: logger}
	runner := batch.NewRunner(batch.Options{FeedsPath: filepath.Join(t.TempDir(), "absent.toml")}, deps, coreconfig.DefaultRunConfig())

	assert.Equal(t, batch.ExitFatal, runOnce(context.Background(), runner, logger))
}

func TestNewCache_FallsBackToMemory(t *testing.T) {
	cache, closeFn := newCache(config.CacheConfig{Type: "memory"}, interfaces.NopLogger{})
	defer closeFn()
	assert.IsType(t, memory.NewMemoryCache(), cache)

	// an unreachable Redis falls back as well
	cache, closeFn2 := newCache(config.CacheConfig{Type: "redis", Redis: config.RedisConfig{Address: "127.0.0.1:1"}}, interfaces.NopLogger{})
	defer closeFn2()
	assert.IsType(t, memory.NewMemoryCache(), cache)
}

func TestNewCache_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cache, closeFn := newCache(config.CacheConfig{Type: "sqlite", Path: path}, interfaces.NopLogger{})
	defer closeFn()

	require.NoError(t, cache.Set(context.Background(), "k", []byte("v"), 0))
	assert.FileExists(t, path)
}
