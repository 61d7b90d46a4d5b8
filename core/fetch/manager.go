// ABOUTME: Fetch manager obtains the current entries of each feed from the network or cache
// ABOUTME: Handles conditional requests, permanent redirects and gone feeds with stale fallback

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"digests-builder/core/config"
	"digests-builder/core/domain"
	coreerrors "digests-builder/core/errors"
	"digests-builder/core/interfaces"
	"digests-builder/core/settings"
	"digests-builder/core/workers"
)

// maxBodySize caps how much of a feed response is read
const maxBodySize = 32 << 20

// RunMode decides when a feed is fetched from the network
type RunMode int

const (
	// FullUpdate always makes a conditional request
	FullUpdate RunMode = iota
	// FetchMissingOnly fetches only feeds without a snapshot
	FetchMissingOnly
	// NoFetch serves every feed from cache
	NoFetch
)

// ParseRunMode parses the run mode names used in configuration
func ParseRunMode(s string) (RunMode, error) {
	switch s {
	case "", "full":
		return FullUpdate, nil
	case "missing":
		return FetchMissingOnly, nil
	case "none":
		return NoFetch, nil
	}
	return FullUpdate, fmt.Errorf("unknown run mode %q, want full, missing or none", s)
}

// String returns the configuration name of the mode
func (m RunMode) String() string {
	switch m {
	case FetchMissingOnly:
		return "missing"
	case NoFetch:
		return "none"
	default:
		return "full"
	}
}

func (m RunMode) shouldFetch(cached bool) bool {
	switch m {
	case NoFetch:
		return false
	case FetchMissingOnly:
		return !cached
	default:
		return true
	}
}

// Source records where the entries of an outcome came from
type Source string

const (
	SourceNetwork     Source = "network"
	SourceNotModified Source = "not_modified"
	SourceCache       Source = "cache"
	SourceStale       Source = "stale"
	SourceNone        Source = "none"
)

// Outcome is the result of obtaining one feed
type Outcome struct {
	// URL is the configured feed URL, FinalURL where its entries now live
	URL      string
	FinalURL string

	// Snapshot is nil when the feed has no entries this run
	Snapshot *domain.Snapshot
	Source   Source

	// Err is the fetch failure; with a stale Snapshot the feed is still usable
	Err error

	// SaveErr is set when the updated snapshot could not be stored
	SaveErr error

	// Mutation is the config change requested by a redirect or gone response
	Mutation *settings.Mutation
}

// Usable reports whether the outcome carries entries for this run
func (o Outcome) Usable() bool {
	return o.Snapshot != nil
}

// SnapshotStore persists snapshots between runs
type SnapshotStore interface {
	Load(ctx context.Context, feedURL string) (*domain.Snapshot, error)
	Save(ctx context.Context, snap *domain.Snapshot) error
}

// Manager obtains feed entries
type Manager struct {
	client    interfaces.HTTPClient
	parser    interfaces.FeedParser
	snapshots SnapshotStore
	logger    interfaces.Logger
	config    config.RunConfig
}

// NewManager creates a fetch manager from the run dependencies
func NewManager(deps interfaces.Dependencies, snapshots SnapshotStore, cfg config.RunConfig) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		client:    deps.HTTPClient,
		parser:    deps.Parser,
		snapshots: snapshots,
		logger:    interfaces.OrNop(deps.Logger),
		config:    cfg,
	}
}

// ObtainEntries returns the current snapshot of feedURL according to mode
func (m *Manager) ObtainEntries(ctx context.Context, feedURL string, mode RunMode) Outcome {
	out := Outcome{URL: feedURL, FinalURL: feedURL, Source: SourceNone}

	prior, err := m.snapshots.Load(ctx, feedURL)
	if err != nil {
		m.logger.Warn("Snapshot read failed, treating feed as uncached", map[string]interface{}{
			"url":   feedURL,
			"error": err.Error(),
		})
		prior = nil
	}

	if !mode.shouldFetch(prior != nil) {
		if prior == nil {
			out.Err = &coreerrors.MissingCacheError{URL: feedURL}
			return out
		}
		out.Snapshot = prior
		out.Source = SourceCache
		return out
	}

	fetchCtx := ctx
	if m.config.FeedTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, m.config.FeedTimeout)
		defer cancel()
	}

	return m.fetch(fetchCtx, ctx, out, prior)
}

// fetch performs the conditional request. Snapshot writes use storeCtx so
// they are not cut short by the fetch timeout.
func (m *Manager) fetch(ctx, storeCtx context.Context, out Outcome, prior *domain.Snapshot) Outcome {
	feedURL := out.URL

	headers := make(map[string]string)
	if prior != nil {
		if prior.ETag != "" {
			headers["If-None-Match"] = prior.ETag
		}
		if prior.LastModified != "" {
			headers["If-Modified-Since"] = prior.LastModified
		}
	}

	resp, err := m.client.Get(ctx, feedURL, headers)
	if err != nil {
		return m.fallback(out, prior, &coreerrors.NetworkError{URL: feedURL, Err: err})
	}
	defer resp.Body().Close()

	now := m.config.Now()
	var snap *domain.Snapshot

	switch code := resp.StatusCode(); {
	case code == http.StatusGone:
		return m.gone(storeCtx, out, prior)

	case code == http.StatusNotModified:
		if prior == nil {
			return m.fallback(out, prior, &coreerrors.NetworkError{URL: feedURL, StatusCode: code})
		}
		updated := *prior
		updated.FetchedAt = now
		updated.Health = domain.Health{Status: domain.HealthOK}
		snap = &updated
		out.Source = SourceNotModified

	case code >= 200 && code < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body(), maxBodySize))
		if err != nil {
			return m.fallback(out, prior, &coreerrors.NetworkError{URL: feedURL, Err: err})
		}
		parsed, err := m.parser.Parse(body)
		if err != nil {
			return m.fallback(out, prior, &coreerrors.ParseError{URL: feedURL, Err: err})
		}
		snap = &domain.Snapshot{
			URL:          feedURL,
			Title:        parsed.Title,
			Link:         parsed.Link,
			ETag:         resp.Header("ETag"),
			LastModified: resp.Header("Last-Modified"),
			FetchedAt:    now,
			Health:       domain.Health{Status: domain.HealthOK},
			Entries:      parsed.Entries,
		}
		out.Source = SourceNetwork

	default:
		return m.fallback(out, prior, &coreerrors.NetworkError{URL: feedURL, StatusCode: code})
	}

	// the snapshot stays under the configured URL; it follows the feed only
	// once the configuration accepts the redirect
	if finalURL, moved := permanentTarget(feedURL, resp); moved {
		snap.URL = feedURL
		snap.Health = domain.Health{Status: domain.HealthRedirected, Location: finalURL}
		mut := settings.Redirect(feedURL, finalURL)
		out.Mutation = &mut
		out.FinalURL = finalURL
		m.logger.Info("Feed permanently redirected", map[string]interface{}{
			"url":       feedURL,
			"final_url": finalURL,
		})
	}

	if err := m.snapshots.Save(storeCtx, snap); err != nil {
		out.SaveErr = err
		m.logger.Error("Failed to save snapshot", map[string]interface{}{
			"url":   snap.URL,
			"error": err.Error(),
		})
	}
	out.Snapshot = snap
	return out
}

// permanentTarget returns the canonical final URL when the response was
// reached only through permanent redirects to a different URL
func permanentTarget(feedURL string, resp interfaces.Response) (string, bool) {
	if !resp.PermanentRedirect() {
		return "", false
	}
	final, err := domain.CanonicalURL(resp.FinalURL())
	if err != nil || final == feedURL {
		return "", false
	}
	return final, true
}

// gone marks the feed for disabling and still serves its cached entries
func (m *Manager) gone(ctx context.Context, out Outcome, prior *domain.Snapshot) Outcome {
	mut := settings.Disable(out.URL)
	out.Mutation = &mut
	m.logger.Warn("Feed is gone, disabling it", map[string]interface{}{"url": out.URL})

	if prior == nil {
		return out
	}
	updated := *prior
	updated.Health = domain.Health{Status: domain.HealthGone}
	if err := m.snapshots.Save(ctx, &updated); err != nil {
		out.SaveErr = err
		m.logger.Error("Failed to save snapshot", map[string]interface{}{
			"url":   out.URL,
			"error": err.Error(),
		})
	}
	out.Snapshot = &updated
	out.Source = SourceCache
	return out
}

// fallback records a transient failure and serves the prior snapshot if any
func (m *Manager) fallback(out Outcome, prior *domain.Snapshot, err error) Outcome {
	out.Err = err
	fields := map[string]interface{}{
		"url":   out.URL,
		"error": err.Error(),
	}
	if prior == nil {
		m.logger.Error("Fetch failed and no snapshot is cached, skipping feed", fields)
		return out
	}
	m.logger.Warn("Fetch failed, serving cached snapshot", fields)
	out.Snapshot = prior
	out.Source = SourceStale
	return out
}

// ObtainAll obtains every feed concurrently and returns the outcomes in the
// order of feedURLs together with the requested config mutations
func (m *Manager) ObtainAll(ctx context.Context, feedURLs []string, mode RunMode) ([]Outcome, []settings.Mutation) {
	type result struct {
		index   int
		outcome Outcome
	}

	outcomes := make([]Outcome, len(feedURLs))
	done := make([]bool, len(feedURLs))
	results := make(chan result)

	var collector sync.WaitGroup
	collector.Add(1)
	go func() {
		defer collector.Done()
		for r := range results {
			outcomes[r.index] = r.outcome
			done[r.index] = true
		}
	}()

	err := workers.ForEach(ctx, workers.WorkerConfig{MaxWorkers: m.config.Workers}, len(feedURLs), func(ctx context.Context, i int) {
		results <- result{index: i, outcome: m.ObtainEntries(ctx, feedURLs[i], mode)}
	})
	close(results)
	collector.Wait()

	var mutations []settings.Mutation
	for i := range outcomes {
		if !done[i] {
			outcomes[i] = Outcome{URL: feedURLs[i], FinalURL: feedURLs[i], Source: SourceNone, Err: err}
			continue
		}
		if outcomes[i].Mutation != nil {
			mutations = append(mutations, *outcomes[i].Mutation)
		}
	}
	return outcomes, mutations
}
