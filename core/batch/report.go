package batch

import (
	"time"

	"digests-builder/core/fetch"
)

// Process exit codes
const (
	ExitOK         = 0
	ExitNoFeeds    = 1
	ExitSaveFailed = 2
	ExitFatal      = 3
)

// Report summarizes one run
type Report struct {
	RunID      string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time

	// Configured counts enabled feeds
	Configured int

	Fetched     int
	NotModified int
	FromCache   int
	Stale       int
	Skipped     int

	ConfigErrors int
	Mutations    int
	Results      int
	Pruned       int

	SnapshotSaveErrors int
	ConfigSaveErr      error
	OutputErr          error
}

func (r *Report) record(out fetch.Outcome) {
	switch out.Source {
	case fetch.SourceNetwork:
		r.Fetched++
	case fetch.SourceNotModified:
		r.NotModified++
	case fetch.SourceCache:
		r.FromCache++
	case fetch.SourceStale:
		r.Stale++
	default:
		r.Skipped++
	}
	if out.SaveErr != nil {
		r.SnapshotSaveErrors++
	}
}

// Processed counts feeds that had entries this run
func (r *Report) Processed() int {
	return r.Fetched + r.NotModified + r.FromCache + r.Stale
}

// ExitCode maps the report to a process exit code. Per-feed failures are
// not fatal; a run fails when nothing could be processed or when durable
// output could not be written.
func (r *Report) ExitCode() int {
	if r.ConfigSaveErr != nil || r.OutputErr != nil || r.SnapshotSaveErrors > 0 {
		return ExitSaveFailed
	}
	if r.Configured > 0 && r.Processed() == 0 {
		return ExitNoFeeds
	}
	return ExitOK
}

// Fields renders the report for a log line
func (r *Report) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"run_id":        r.RunID,
		"mode":          r.Mode,
		"configured":    r.Configured,
		"fetched":       r.Fetched,
		"not_modified":  r.NotModified,
		"from_cache":    r.FromCache,
		"stale":         r.Stale,
		"skipped":       r.Skipped,
		"config_errors": r.ConfigErrors,
		"mutations":     r.Mutations,
		"results":       r.Results,
		"pruned":        r.Pruned,
		"duration":      r.FinishedAt.Sub(r.StartedAt).String(),
	}
	if r.SnapshotSaveErrors > 0 {
		fields["snapshot_save_errors"] = r.SnapshotSaveErrors
	}
	if r.ConfigSaveErr != nil {
		fields["config_save_error"] = r.ConfigSaveErr.Error()
	}
	if r.OutputErr != nil {
		fields["output_error"] = r.OutputErr.Error()
	}
	return fields
}
