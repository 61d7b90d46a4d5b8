// ABOUTME: Wires the cache backend, HTTP client, parser and runner from configuration
// ABOUTME: Runs one batch or keeps running scheduled batches until the context ends

package main

import (
	"context"
	"os"
	"sync"

	"digests-builder/core/batch"
	coreconfig "digests-builder/core/config"
	"digests-builder/core/feed"
	"digests-builder/core/fetch"
	"digests-builder/core/interfaces"
	"digests-builder/infrastructure/cache/memory"
	"digests-builder/infrastructure/cache/redis"
	"digests-builder/infrastructure/cache/sqlite"
	stdhttp "digests-builder/infrastructure/http/standard"
	"digests-builder/infrastructure/logger/structured"
	"digests-builder/pkg/config"
	"digests-builder/pkg/featureflags"
	"digests-builder/pkg/scheduler"
)

// run builds the runner and executes it, returning the process exit code
func run(ctx context.Context, cfg *config.Config) int {
	logger, err := structured.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		os.Stderr.WriteString("digests-builder: " + err.Error() + "\n")
		return batch.ExitFatal
	}

	mode, err := fetch.ParseRunMode(cfg.Run.Mode)
	if err != nil {
		logger.Error("Invalid run mode", map[string]interface{}{"error": err.Error()})
		return batch.ExitFatal
	}

	cache, closeCache := newCache(cfg.Cache, logger)
	defer closeCache()

	flags := featureflags.NewEnvManager("")
	runCfg := coreconfig.NewRunConfig(
		coreconfig.WithWorkers(cfg.Fetch.Workers),
		coreconfig.WithFeedTimeout(cfg.Fetch.Timeout),
		coreconfig.WithSanitizer(flags.IsEnabled(ctx, featureflags.SanitizeContent)),
		coreconfig.WithPruning(flags.IsEnabled(ctx, featureflags.PruneCache)),
	)

	deps := interfaces.Dependencies{
		Cache:      cache,
		HTTPClient: stdhttp.NewStandardHTTPClient(cfg.Fetch.Timeout, cfg.Fetch.HostInterval),
		Parser:     feed.NewParser(),
		Logger:     logger,
	}

	runner := batch.NewRunner(batch.Options{
		FeedsPath:  cfg.Run.FeedsConfig,
		OutputPath: cfg.Run.OutputFile,
		Mode:       mode,
	}, deps, runCfg)

	logger.Info("Starting digests builder", map[string]interface{}{
		"version":    version,
		"feeds":      cfg.Run.FeedsConfig,
		"output":     cfg.Run.OutputFile,
		"mode":       mode.String(),
		"cache_type": cfg.Cache.Type,
		"workers":    runCfg.Workers,
		"flags":      flags.GetAllFlags(),
	})

	if cfg.Run.Schedule == "" {
		return runOnce(ctx, runner, logger)
	}
	return runScheduled(ctx, cfg.Run.Schedule, runner, logger)
}

func runOnce(ctx context.Context, runner *batch.Runner, logger interfaces.Logger) int {
	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("Run failed", map[string]interface{}{"error": err.Error()})
		return batch.ExitFatal
	}
	return report.ExitCode()
}

// runScheduled runs on every tick until ctx ends and returns the code of the
// last completed run
func runScheduled(ctx context.Context, spec string, runner *batch.Runner, logger interfaces.Logger) int {
	var (
		mu   sync.Mutex
		last = batch.ExitOK
	)

	sched, err := scheduler.New(spec, func() {
		code := runOnce(ctx, runner, logger)
		mu.Lock()
		last = code
		mu.Unlock()
	}, logger, nil)
	if err != nil {
		logger.Error("Invalid schedule", map[string]interface{}{"error": err.Error()})
		return batch.ExitFatal
	}

	sched.Start()
	<-ctx.Done()

	logger.Info("Shutting down scheduler...", nil)
	<-sched.Stop().Done()
	logger.Info("Scheduler stopped", nil)

	mu.Lock()
	defer mu.Unlock()
	return last
}

// newCache opens the configured snapshot backend. A Redis backend that
// cannot be reached falls back to memory; SQLite failures fall back too.
func newCache(cfg config.CacheConfig, logger interfaces.Logger) (interfaces.Cache, func()) {
	switch cfg.Type {
	case "redis", "redisjson":
		redisCache, err := redis.NewRedisCache(cfg.Redis)
		if err != nil {
			logger.Error("Failed to create Redis cache, falling back to memory", map[string]interface{}{
				"error": err.Error(),
			})
			break
		}
		logger.Info("Using Redis cache", map[string]interface{}{
			"address": cfg.Redis.Address,
			"json":    cfg.Redis.JSON,
		})
		return redisCache, func() { closeWithLog(redisCache.Close, logger) }
	case "sqlite":
		sqliteCache, err := sqlite.NewSQLiteCacheWithLogger(cfg.Path, logger)
		if err != nil {
			logger.Error("Failed to open SQLite cache, falling back to memory", map[string]interface{}{
				"path":  cfg.Path,
				"error": err.Error(),
			})
			break
		}
		logger.Info("Using SQLite cache", map[string]interface{}{"path": cfg.Path})
		return sqliteCache, func() { closeWithLog(sqliteCache.Close, logger) }
	}

	logger.Info("Using memory cache", nil)
	return memory.NewMemoryCache(), func() {}
}

func closeWithLog(closeFn func() error, logger interfaces.Logger) {
	if err := closeFn(); err != nil {
		logger.Warn("Failed to close cache", map[string]interface{}{"error": err.Error()})
	}
}
