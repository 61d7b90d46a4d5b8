// ABOUTME: Run configuration for the fetch and transform phases
// ABOUTME: Provides functional options independent of environment loading

package config

import "time"

// RunConfig controls how a batch run fetches and transforms feeds
type RunConfig struct {
	// Workers bounds concurrent fetches and transforms
	Workers int

	// FeedTimeout bounds one feed's fetch, including retries
	FeedTimeout time.Duration

	// Now is the run clock used for age limits and age classes
	Now func() time.Time

	// SanitizeContent passes display content through an HTML sanitizer
	SanitizeContent bool

	// PruneCache removes snapshots of feeds that are no longer configured
	PruneCache bool
}

// DefaultRunConfig returns the default run configuration
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Workers:         8,
		FeedTimeout:     30 * time.Second,
		Now:             time.Now,
		SanitizeContent: false,
		PruneCache:      true,
	}
}

// RunOption is a functional option for configuring a run
type RunOption func(*RunConfig)

// WithWorkers sets the worker count; values below one are ignored
func WithWorkers(n int) RunOption {
	return func(c *RunConfig) {
		if n > 0 {
			c.Workers = n
		}
	}
}

// WithFeedTimeout sets the per-feed fetch timeout; non-positive values are ignored
func WithFeedTimeout(d time.Duration) RunOption {
	return func(c *RunConfig) {
		if d > 0 {
			c.FeedTimeout = d
		}
	}
}

// WithClock replaces the run clock
func WithClock(now func() time.Time) RunOption {
	return func(c *RunConfig) {
		if now != nil {
			c.Now = now
		}
	}
}

// WithSanitizer enables or disables content sanitizing
func WithSanitizer(enabled bool) RunOption {
	return func(c *RunConfig) {
		c.SanitizeContent = enabled
	}
}

// WithPruning enables or disables snapshot pruning
func WithPruning(enabled bool) RunOption {
	return func(c *RunConfig) {
		c.PruneCache = enabled
	}
}

// WithoutPruning disables snapshot pruning
func WithoutPruning() RunOption {
	return WithPruning(false)
}

// NewRunConfig creates a run configuration with the given options
func NewRunConfig(opts ...RunOption) RunConfig {
	config := DefaultRunConfig()

	for _, opt := range opts {
		opt(&config)
	}

	return config
}
