// Package infrastructure provides concrete implementations of the interfaces
// defined in the core package.
//
// The infrastructure package is organized by technical concern:
//
// - cache/sqlite: File-backed snapshot cache, the default for scheduled runs
// - cache/memory: In-memory cache on patrickmn/go-cache
// - cache/redis: Redis cache, optionally storing RedisJSON documents
// - http/standard: net/http client with retries, redirect tracing and per-host pacing
// - logger/structured: logrus-backed logger with text or JSON output
//
// # Cache Implementations
//
//	cache, err := sqlite.NewSQLiteCache("digests-cache.db")
//	err = cache.Set(ctx, "key", []byte("value"), 0)
//	value, err := cache.Get(ctx, "key")
//
//	cache, err := redis.NewRedisCache(config.RedisConfig{
//	    Address: "localhost:6379",
//	    JSON:    true,
//	})
//
// # HTTP Client
//
//	client := standard.NewStandardHTTPClient(30*time.Second, time.Second)
//	resp, err := client.Get(ctx, "https://example.com/feed.xml", nil)
//	if err != nil {
//	    // Handle error
//	}
//	defer resp.Body().Close()
//
// # Logger
//
//	logger, err := structured.NewLogger("info", "json", os.Stderr)
//	logger.Info("Feed fetched", map[string]interface{}{
//	    "url":     "https://example.com/feed.xml",
//	    "entries": 12,
//	})
package infrastructure
