// ABOUTME: Snapshot store persists per-feed fetch state in the configured cache backend
// ABOUTME: Entries are versioned JSON envelopes keyed by a hash of the canonical feed URL

package snapshot

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"digests-builder/core/domain"
	coreerrors "digests-builder/core/errors"
	"digests-builder/core/interfaces"
)

const (
	// KeyPrefix namespaces snapshot keys inside a shared cache
	KeyPrefix = "snapshot:"

	// Version is bumped whenever the stored layout changes incompatibly
	Version = 1
)

type envelope struct {
	Version  int             `json:"version"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

// Store reads and writes feed snapshots
type Store struct {
	cache  interfaces.Cache
	logger interfaces.Logger
}

// NewStore creates a snapshot store over cache
func NewStore(cache interfaces.Cache, logger interfaces.Logger) *Store {
	return &Store{cache: cache, logger: interfaces.OrNop(logger)}
}

// Key returns the cache key of a feed URL. URLs that fail to canonicalize
// are hashed as given.
func Key(feedURL string) string {
	if canonical, err := domain.CanonicalURL(feedURL); err == nil {
		feedURL = canonical
	}
	sum := sha1.Sum([]byte(feedURL))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// Load returns the snapshot of feedURL, or nil when there is none.
// Unreadable entries are reported and treated as absent.
func (s *Store) Load(ctx context.Context, feedURL string) (*domain.Snapshot, error) {
	key := Key(feedURL)
	data, err := s.cache.Get(ctx, key)
	if errors.Is(err, interfaces.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot of %s: %w", feedURL, err)
	}

	snap, err := decode(key, data)
	if err != nil {
		s.logger.Warn("Discarding unreadable snapshot", map[string]interface{}{
			"url":   feedURL,
			"key":   key,
			"error": err.Error(),
		})
		return nil, nil
	}
	return snap, nil
}

func decode(key string, data []byte) (*domain.Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &coreerrors.CacheCorruptionError{Key: key, Err: err}
	}
	if env.Version != Version {
		return nil, &coreerrors.CacheCorruptionError{Key: key, Err: fmt.Errorf("snapshot version %d, want %d", env.Version, Version)}
	}
	if err := env.Snapshot.Validate(); err != nil {
		return nil, &coreerrors.CacheCorruptionError{Key: key, Err: err}
	}
	return &env.Snapshot, nil
}

// Save stores snap under its URL with no expiry
func (s *Store) Save(ctx context.Context, snap *domain.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Version: Version, Snapshot: *snap})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot of %s: %w", snap.URL, err)
	}
	if err := s.cache.Set(ctx, Key(snap.URL), data, 0); err != nil {
		return fmt.Errorf("failed to write snapshot of %s: %w", snap.URL, err)
	}
	return nil
}

// Migrate moves the snapshot of from to the key of to, rewriting its URL.
// It is a no-op when from has no snapshot.
func (s *Store) Migrate(ctx context.Context, from, to string) error {
	if Key(from) == Key(to) {
		return nil
	}
	snap, err := s.Load(ctx, from)
	if err != nil || snap == nil {
		return err
	}
	if canonical, err := domain.CanonicalURL(to); err == nil {
		to = canonical
	}
	snap.URL = to
	if err := s.Save(ctx, snap); err != nil {
		return err
	}
	return s.cache.Delete(ctx, Key(from))
}

// Prune deletes snapshots of feeds not in keep and returns how many were
// removed. Backends that cannot list keys are left untouched.
func (s *Store) Prune(ctx context.Context, keep []string) (int, error) {
	lister, ok := s.cache.(interfaces.KeyLister)
	if !ok {
		s.logger.Debug("Cache backend cannot list keys, skipping prune", nil)
		return 0, nil
	}

	live := make(map[string]struct{}, len(keep))
	for _, u := range keep {
		live[Key(u)] = struct{}{}
	}

	keys, err := lister.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if _, ok := live[key]; ok {
			continue
		}
		if err := s.cache.Delete(ctx, key); err != nil {
			return removed, fmt.Errorf("failed to prune %s: %w", key, err)
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("Pruned stale snapshots", map[string]interface{}{"removed": removed})
	}
	return removed, nil
}
