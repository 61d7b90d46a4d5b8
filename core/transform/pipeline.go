// ABOUTME: Transform pipeline turns raw feed entries into the final per-feed and per-group sequences
// ABOUTME: Applies media rewrite, strip, ignore, digests, group aggregation and limits in a fixed order

package transform

import (
	"context"
	"time"

	"digests-builder/core/config"
	"digests-builder/core/digest"
	"digests-builder/core/domain"
	"digests-builder/core/group"
	"digests-builder/core/interfaces"
	"digests-builder/core/workers"
	timeutil "digests-builder/pkg/utils/time"
	"github.com/microcosm-cc/bluemonday"
)

// GroupKeyPrefix namespaces group results apart from feed URLs
const GroupKeyPrefix = "group:"

// FeedInput is one configured feed with its resolved settings and entries
type FeedInput struct {
	Settings domain.FeedSettings

	// Snapshot is nil when the feed has no entries this run
	Snapshot *domain.Snapshot

	// Err is a resolution failure; the feed is reported and skipped
	Err error
}

// GroupInput is one group with its resolved settings and member URLs
type GroupInput struct {
	Key      string
	Settings domain.FeedSettings

	// Members are canonical member URLs in declaration order
	Members []string

	Err error
}

// Failure is a feed or group that could not be transformed
type Failure struct {
	Key string
	Err error
}

// Output is the result of one pipeline run
type Output struct {
	// Results hold standalone feeds in declaration order, then groups
	Results  []domain.Result
	Failures []Failure
}

// ByKey indexes the results by feed URL or group key
func (o Output) ByKey() map[string]domain.Result {
	m := make(map[string]domain.Result, len(o.Results))
	for _, r := range o.Results {
		m[r.Key] = r
	}
	return m
}

// Pipeline transforms entries. It holds no state between runs.
type Pipeline struct {
	logger    interfaces.Logger
	config    config.RunConfig
	sanitizer *bluemonday.Policy
}

// NewPipeline creates a pipeline
func NewPipeline(logger interfaces.Logger, cfg config.RunConfig) *Pipeline {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	p := &Pipeline{logger: interfaces.OrNop(logger), config: cfg}
	if cfg.SanitizeContent {
		p.sanitizer = bluemonday.UGCPolicy()
	}
	return p
}

// memberResult is the state of a feed after the per-feed stages
type memberResult struct {
	entries []domain.Entry
	err     error
	ok      bool
}

// Transform runs every stage over feeds and groups. Feeds are processed
// concurrently, then groups; each feed or group is processed by one goroutine.
func (p *Pipeline) Transform(ctx context.Context, feeds []FeedInput, groups []GroupInput) Output {
	now := p.config.Now()
	pool := workers.WorkerConfig{MaxWorkers: p.config.Workers}

	staged := make([]memberResult, len(feeds))
	results := make([]*domain.Result, len(feeds)+len(groups))
	byURL := make(map[string]int, len(feeds))
	for i, f := range feeds {
		byURL[f.Settings.URL] = i
	}

	_ = workers.ForEach(ctx, pool, len(feeds), func(_ context.Context, i int) {
		f := feeds[i]
		if f.Err != nil {
			staged[i] = memberResult{err: f.Err}
			return
		}
		if f.Snapshot == nil {
			return
		}
		entries := p.feedEntries(f.Settings, f.Snapshot)
		staged[i] = memberResult{entries: entries, ok: true}

		if f.Settings.Group != "" {
			return
		}
		entries = p.limit(entries, f.Settings, now)
		results[i] = feedResult(f, entries)
	})

	_ = workers.ForEach(ctx, pool, len(groups), func(_ context.Context, i int) {
		g := groups[i]
		if g.Err != nil {
			return
		}

		var members [][]domain.Entry
		var used []string
		for _, url := range g.Members {
			idx, ok := byURL[url]
			if !ok || !staged[idx].ok {
				continue
			}
			members = append(members, staged[idx].entries)
			used = append(used, url)
		}

		entries := group.Aggregate(members)
		if g.Settings.Digest != nil {
			entries = digest.Aggregate(entries, g.Settings.Digest, g.Settings.Display())
		}
		entries = p.limit(entries, g.Settings, now)
		results[len(feeds)+i] = groupResult(g, used, entries)
	})

	var out Output
	for i, f := range feeds {
		if staged[i].err != nil {
			out.Failures = append(out.Failures, Failure{Key: f.Settings.URL, Err: staged[i].err})
		}
	}
	for _, g := range groups {
		if g.Err != nil {
			out.Failures = append(out.Failures, Failure{Key: GroupKeyPrefix + g.Key, Err: g.Err})
		}
	}
	for _, r := range results {
		if r != nil {
			out.Results = append(out.Results, *r)
		}
	}
	for _, f := range out.Failures {
		p.logger.Error("Skipping feed with invalid configuration", map[string]interface{}{
			"feed":  f.Key,
			"error": f.Err.Error(),
		})
	}
	return out
}

// feedEntries runs the per-feed stages: entry preparation, media rewrite,
// strip, ignore and the feed's own digest
func (p *Pipeline) feedEntries(s domain.FeedSettings, snap *domain.Snapshot) []domain.Entry {
	title := s.Title
	if title == "" {
		title = snap.Title
	}

	entries := make([]domain.Entry, 0, len(snap.Entries))
	for _, raw := range snap.Entries {
		e := domain.Entry{
			ID:        raw.ID,
			Title:     raw.Title,
			Link:      raw.Link,
			Published: p.published(raw, s, snap.FetchedAt),
			Summary:   raw.Summary,
			Content:   chooseContent(raw, s.FullContent),
			FeedURL:   s.URL,
			FeedTitle: title,
		}
		if len(raw.Fields) > 0 {
			e.Fields = make(map[string]string, len(raw.Fields))
			for k, v := range raw.Fields {
				e.Fields[k] = v
			}
		}
		if p.sanitizer != nil {
			e.Content = p.sanitizer.Sanitize(e.Content)
		}
		e.Content = rewriteMedia(e.Content, s.MaxImgWidth)
		entries = append(entries, e)
	}

	strip(entries, s.Strip)
	entries = ignore(entries, s.Ignore)
	entries = domain.Dedupe(entries)

	for i := range entries {
		if entries[i].Title == "" {
			entries[i].Title = fallbackTitle(&entries[i])
		}
	}

	if s.Digest != nil {
		entries = digest.Aggregate(entries, s.Digest, s.Display())
	}
	return entries
}

// published re-derives an entry timestamp from date_format and the source
// location. Undated entries take the snapshot fetch time.
func (p *Pipeline) published(raw domain.RawEntry, s domain.FeedSettings, fetched time.Time) time.Time {
	if s.DateFormat != "" && raw.PublishedRaw != "" {
		t, err := timeutil.ParseFormat(s.DateFormat, raw.PublishedRaw, s.SourceLocation)
		if err == nil {
			return t
		}
		p.logger.Debug("date_format did not match, using parsed time", map[string]interface{}{
			"url":   s.URL,
			"key":   "date_format",
			"value": raw.PublishedRaw,
			"error": err.Error(),
		})
	}

	t := raw.Published
	if t.IsZero() {
		return fetched
	}
	if s.SourceLocation != nil {
		y, mo, d := t.Date()
		h, mi, sec := t.Clock()
		t = time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), s.SourceLocation)
	}
	return t
}

func chooseContent(raw domain.RawEntry, full bool) string {
	if full {
		if raw.Content != "" {
			return raw.Content
		}
		return raw.Summary
	}
	if raw.Summary != "" {
		return raw.Summary
	}
	return raw.Content
}

// limit applies sort, the age filter and the count limit, then converts
// times to the display location and sets age classes
func (p *Pipeline) limit(entries []domain.Entry, s domain.FeedSettings, now time.Time) []domain.Entry {
	if s.Sort {
		domain.SortNewestFirst(entries)
	}
	entries = limitAge(entries, s.MaxEntryAge, now)
	entries = limitCount(entries, s.MaxEntryNum)

	display := s.Display()
	for i := range entries {
		entries[i].Published = entries[i].Published.In(display)
		entries[i].AgeClasses = ageClasses(entries[i].Published, now)
	}
	return entries
}

func feedResult(f FeedInput, entries []domain.Entry) *domain.Result {
	title := f.Settings.Title
	if title == "" {
		title = f.Snapshot.Title
	}
	if title == "" {
		title = f.Settings.URL
	}
	return &domain.Result{
		Key:           f.Settings.URL,
		Title:         title,
		Link:          f.Snapshot.Link,
		Category:      f.Settings.Category.Key,
		CategoryTitle: f.Settings.Category.Title,
		Hide:          f.Settings.Hide,
		Entries:       entries,
	}
}

func groupResult(g GroupInput, members []string, entries []domain.Entry) *domain.Result {
	title := g.Settings.Title
	if title == "" {
		title = g.Key
	}
	return &domain.Result{
		Key:           GroupKeyPrefix + g.Key,
		Title:         title,
		Category:      g.Settings.Category.Key,
		CategoryTitle: g.Settings.Category.Title,
		Group:         g.Key,
		IsGroup:       true,
		Hide:          g.Settings.Hide,
		Members:       members,
		Entries:       entries,
	}
}
