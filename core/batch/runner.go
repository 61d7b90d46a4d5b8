// ABOUTME: Batch runner executes one complete digest run
// ABOUTME: Resolves settings, fetches feeds, persists config changes once, transforms and writes the artifact

package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"digests-builder/api/dto/mappers"
	"digests-builder/core/config"
	"digests-builder/core/fetch"
	"digests-builder/core/interfaces"
	"digests-builder/core/settings"
	"digests-builder/core/snapshot"
	"digests-builder/core/transform"
	"digests-builder/pkg/utils/file"
	"github.com/google/uuid"
)

// Options locate the inputs and outputs of a run
type Options struct {
	// FeedsPath is the TOML feed configuration, rewritten on redirects
	FeedsPath string

	// OutputPath receives the JSON artifact
	OutputPath string

	Mode fetch.RunMode
}

// Runner executes runs. A runner can be reused; each run reloads the
// feed configuration.
type Runner struct {
	opts      Options
	logger    interfaces.Logger
	config    config.RunConfig
	snapshots *snapshot.Store
	fetcher   *fetch.Manager
	pipeline  *transform.Pipeline
}

// NewRunner wires the fetch manager and pipeline over deps
func NewRunner(opts Options, deps interfaces.Dependencies, cfg config.RunConfig) *Runner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := interfaces.OrNop(deps.Logger)
	snapshots := snapshot.NewStore(deps.Cache, logger)
	return &Runner{
		opts:      opts,
		logger:    logger,
		config:    cfg,
		snapshots: snapshots,
		fetcher:   fetch.NewManager(deps, snapshots, cfg),
		pipeline:  transform.NewPipeline(logger, cfg),
	}
}

// Run performs one run. The error is set only when the feed configuration
// cannot be loaded; every other failure is recorded in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Mode:      r.opts.Mode.String(),
		StartedAt: r.config.Now(),
	}
	logger := r.logger

	store, err := settings.Load(r.opts.FeedsPath, logger)
	if err != nil {
		return report, err
	}

	feeds, groups, urls := r.resolve(store)
	report.Configured = len(feeds)

	outcomes, mutations := r.fetcher.ObtainAll(ctx, urls, r.opts.Mode)
	index := make(map[string]int, len(feeds))
	for i, f := range feeds {
		index[f.Settings.URL] = i
	}
	var failures []mappers.FeedError
	for _, out := range outcomes {
		report.record(out)
		feeds[index[out.URL]].Snapshot = out.Snapshot
		if out.Err != nil {
			failures = append(failures, mappers.FeedError{Key: out.URL, Err: out.Err})
		}
	}

	// the only write of the config file in a run
	if len(mutations) > 0 {
		applied := store.Apply(mutations)
		report.Mutations = len(applied)
		if err := store.Save(); err != nil {
			report.ConfigSaveErr = err
			logger.Error("Failed to save configuration changes", map[string]interface{}{
				"path":  r.opts.FeedsPath,
				"error": err.Error(),
			})
		} else {
			r.migrate(ctx, applied, report)
		}
	}

	output := r.pipeline.Transform(ctx, feeds, groups)
	report.ConfigErrors = len(output.Failures)
	report.Results = len(output.Results)
	for _, f := range output.Failures {
		failures = append(failures, mappers.FeedError{Key: f.Key, Err: f.Err})
	}

	report.FinishedAt = r.config.Now()
	doc := mappers.ToDigestResponse(report.RunID, report.FinishedAt, output.Results, failures)
	if err := r.write(doc); err != nil {
		report.OutputErr = err
		logger.Error("Failed to write output", map[string]interface{}{
			"path":  r.opts.OutputPath,
			"error": err.Error(),
		})
	}

	if r.config.PruneCache {
		r.prune(ctx, store, report)
	}

	logger.Info("Run finished", report.Fields())
	return report, nil
}

// resolve builds the pipeline inputs of every enabled feed and of groups
// with enabled members, and returns the URLs to obtain
func (r *Runner) resolve(store *settings.Store) ([]transform.FeedInput, []transform.GroupInput, []string) {
	var feeds []transform.FeedInput
	var urls []string
	enabled := make(map[string]bool)

	for _, ref := range store.Feeds() {
		if ref.Disabled {
			r.logger.Debug("Skipping disabled feed", map[string]interface{}{"url": ref.URL})
			continue
		}
		enabled[ref.URL] = true

		s, err := store.Resolve(ref.URL)
		if err != nil {
			s.URL = ref.URL
			s.Group = ref.Group
			feeds = append(feeds, transform.FeedInput{Settings: s, Err: err})
			continue
		}
		feeds = append(feeds, transform.FeedInput{Settings: s})
		urls = append(urls, ref.URL)
	}

	var groups []transform.GroupInput
	for _, key := range store.Groups() {
		var members []string
		for _, url := range store.GroupMembers(key) {
			if enabled[url] {
				members = append(members, url)
			}
		}
		if len(members) == 0 {
			continue
		}
		s, err := store.ResolveGroup(key)
		groups = append(groups, transform.GroupInput{Key: key, Settings: s, Members: members, Err: err})
	}

	return feeds, groups, urls
}

func (r *Runner) write(doc interface{}) error {
	if r.opts.OutputPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return file.WriteAtomic(r.opts.OutputPath, append(data, '\n'))
}

// migrate moves the snapshots of feeds whose redirect the configuration
// accepted to their new URL
func (r *Runner) migrate(ctx context.Context, applied []settings.Mutation, report *Report) {
	for _, m := range applied {
		if m.Kind != settings.MutationRedirect {
			continue
		}
		if err := r.snapshots.Migrate(ctx, m.URL, m.NewURL); err != nil {
			report.SnapshotSaveErrors++
			r.logger.Error("Failed to move snapshot to redirected URL", map[string]interface{}{
				"url":       m.URL,
				"final_url": m.NewURL,
				"error":     err.Error(),
			})
		}
	}
}

// prune removes snapshots of feeds that are no longer in the configuration.
// Disabled feeds keep their snapshot.
func (r *Runner) prune(ctx context.Context, store *settings.Store, report *Report) {
	var keep []string
	for _, ref := range store.Feeds() {
		keep = append(keep, ref.URL)
	}
	removed, err := r.snapshots.Prune(ctx, keep)
	report.Pruned = removed
	if err != nil {
		r.logger.Warn("Failed to prune snapshots", map[string]interface{}{"error": err.Error()})
	}
}
