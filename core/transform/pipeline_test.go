package transform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"digests-builder/core/config"
	"digests-builder/core/domain"
	coreerrors "digests-builder/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runTime = time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

func newTestPipeline(opts ...config.RunOption) *Pipeline {
	opts = append([]config.RunOption{config.WithClock(func() time.Time { return runTime })}, opts...)
	return NewPipeline(nil, config.NewRunConfig(opts...))
}

func rule(name, source, find string) domain.Rule {
	return domain.Rule{Name: name, Source: source, Find: find, Pattern: regexp.MustCompile(find)}
}

func snapshotOf(url string, entries ...domain.RawEntry) *domain.Snapshot {
	return &domain.Snapshot{
		URL:       url,
		Title:     "Feed " + url,
		Link:      url + "/home",
		FetchedAt: runTime,
		Entries:   entries,
	}
}

func raw(id string, age time.Duration) domain.RawEntry {
	return domain.RawEntry{
		ID:        id,
		Title:     "Entry " + id,
		Link:      "https://example.com/" + id,
		Published: runTime.Add(-age),
		Summary:   "summary " + id,
		Content:   "<p>content " + id + "</p>",
	}
}

func titles(entries []domain.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func TestTransform_AgeFilterRunsBeforeCountLimit(t *testing.T) {
	const url = "https://example.com/feed"
	day := 24 * time.Hour

	var entries []domain.RawEntry
	for i := 0; i < 10; i++ {
		age := time.Duration(i) * day
		if i >= 3 {
			age = time.Duration(40+i) * day
		}
		entries = append(entries, raw(fmt.Sprint(i), age))
	}

	out := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url, MaxEntryAge: 30, MaxEntryNum: 5},
		Snapshot: snapshotOf(url, entries...),
	}}, nil)

	require.Len(t, out.Results, 1)
	assert.Equal(t, []string{"Entry 0", "Entry 1", "Entry 2"}, titles(out.Results[0].Entries))
}

func TestTransform_CountLimitKeepsNewest(t *testing.T) {
	const url = "https://example.com/feed"
	snap := snapshotOf(url,
		raw("old", 5*time.Hour),
		raw("newest", time.Hour),
		raw("oldest", 9*time.Hour),
		raw("new", 2*time.Hour),
	)

	unsorted := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url, MaxEntryNum: 2},
		Snapshot: snap,
	}}, nil)
	assert.Equal(t, []string{"Entry newest", "Entry new"}, titles(unsorted.Results[0].Entries))

	sorted := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url, Sort: true},
		Snapshot: snap,
	}}, nil)
	assert.Equal(t, []string{"Entry newest", "Entry new", "Entry old", "Entry oldest"}, titles(sorted.Results[0].Entries))

	parserOrder := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url},
		Snapshot: snap,
	}}, nil)
	assert.Equal(t, []string{"Entry old", "Entry newest", "Entry oldest", "Entry new"}, titles(parserOrder.Results[0].Entries))
}

func TestTransform_StripAndIgnore(t *testing.T) {
	const url = "https://example.com/feed"
	sponsored := raw("s", time.Hour)
	sponsored.Title = "Sponsored: buy now"
	tracked := raw("t", 2*time.Hour)
	tracked.Link = "https://example.com/t?utm_source=rss"
	tagged := raw("c", 3*time.Hour)
	tagged.Fields = map[string]string{"categories": "Podcast"}

	out := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{
			URL: url,
			Strip: domain.RuleSet{
				"tracking": rule("tracking", "link", `\?utm_[^#]*`),
			},
			Ignore: domain.RuleSet{
				"ads":      rule("ads", "title", `(?i)^sponsored`),
				"podcasts": rule("podcasts", "categories", `Podcast`),
			},
		},
		Snapshot: snapshotOf(url, sponsored, tracked, tagged),
	}}, nil)

	entries := out.Results[0].Entries
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/t", entries[0].Link)
}

func TestTransform_ContentChoiceAndMedia(t *testing.T) {
	const url = "https://example.com/feed"
	e := raw("m", time.Hour)
	e.Content = `<p>Full <img src="https://img.example.com/a.jpg?w=1200" srcset="a.jpg 2x"></p>`

	summary := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url},
		Snapshot: snapshotOf(url, e),
	}}, nil)
	assert.Equal(t, "summary m", summary.Results[0].Entries[0].Content)

	full := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url, FullContent: true, MaxImgWidth: 400},
		Snapshot: snapshotOf(url, e),
	}}, nil)
	content := full.Results[0].Entries[0].Content
	assert.Contains(t, content, `loading="lazy"`)
	assert.Contains(t, content, `https://img.example.com/a.jpg?w=400`)
	assert.NotContains(t, content, "srcset")
}

func TestTransform_Sanitizer(t *testing.T) {
	const url = "https://example.com/feed"
	e := raw("x", time.Hour)
	e.Summary = `<p onclick="steal()">hi</p><script>alert(1)</script>`

	out := newTestPipeline(config.WithSanitizer(true)).Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url},
		Snapshot: snapshotOf(url, e),
	}}, nil)

	content := out.Results[0].Entries[0].Content
	assert.Contains(t, content, "hi")
	assert.NotContains(t, content, "script")
	assert.NotContains(t, content, "onclick")
}

func TestTransform_DateFormatAndSourceLocation(t *testing.T) {
	const url = "https://example.com/feed"
	minus5 := time.FixedZone("UTC-5", -5*3600)

	formatted := raw("f", 0)
	formatted.PublishedRaw = "2024-03-30 08:15"
	naive := raw("n", 0)
	naive.Published = time.Date(2024, 3, 30, 9, 0, 0, 0, time.UTC)
	undated := raw("u", 0)
	undated.Published = time.Time{}

	out := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url, DateFormat: "%Y-%m-%d %H:%M", SourceLocation: minus5},
		Snapshot: snapshotOf(url, formatted, naive, undated),
	}}, nil)

	byTitle := make(map[string]domain.Entry)
	for _, e := range out.Results[0].Entries {
		byTitle[e.Title] = e
	}
	assert.True(t, byTitle["Entry f"].Published.Equal(time.Date(2024, 3, 30, 13, 15, 0, 0, time.UTC)))
	assert.True(t, byTitle["Entry n"].Published.Equal(time.Date(2024, 3, 30, 14, 0, 0, 0, time.UTC)))
	assert.True(t, byTitle["Entry u"].Published.Equal(runTime))
}

func TestTransform_DisplayLocationAndAgeClasses(t *testing.T) {
	const url = "https://example.com/feed"
	tokyo := time.FixedZone("UTC+9", 9*3600)

	out := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url, DisplayLocation: tokyo},
		Snapshot: snapshotOf(url, raw("today", time.Hour), raw("week", 3*24*time.Hour), raw("old", 10*24*time.Hour)),
	}}, nil)

	entries := out.Results[0].Entries
	require.Len(t, entries, 3)
	assert.Equal(t, tokyo, entries[0].Published.Location())
	assert.Equal(t, []string{"today", "thisweek"}, entries[0].AgeClasses)
	assert.Equal(t, []string{"thisweek"}, entries[1].AgeClasses)
	assert.Empty(t, entries[2].AgeClasses)
}

func TestTransform_Groups(t *testing.T) {
	const (
		a = "https://a.example.com/feed"
		b = "https://b.example.com/feed"
		c = "https://c.example.com/feed"
	)
	shared := raw("shared", 2*time.Hour)
	feeds := []FeedInput{
		{Settings: domain.FeedSettings{URL: a, Group: "comics"}, Snapshot: snapshotOf(a, raw("a1", time.Hour), shared)},
		{Settings: domain.FeedSettings{URL: b, Group: "comics"}, Snapshot: snapshotOf(b, raw("b1", 3*time.Hour), shared)},
		{Settings: domain.FeedSettings{URL: c, Title: "Standalone"}, Snapshot: snapshotOf(c, raw("c1", time.Hour))},
	}
	groups := []GroupInput{{
		Key:      "comics",
		Members:  []string{a, b},
		Settings: domain.FeedSettings{Title: "Daily Comics", Group: "comics", MaxEntryNum: 2, Category: domain.Category{Key: "fun", Title: "Fun"}},
	}}

	out := newTestPipeline().Transform(context.Background(), feeds, groups)
	require.Empty(t, out.Failures)
	require.Len(t, out.Results, 2, "members only appear inside their group")

	results := out.ByKey()
	standalone := results[c]
	assert.Equal(t, "Standalone", standalone.Title)
	assert.Equal(t, c+"/home", standalone.Link)

	g := results["group:comics"]
	assert.True(t, g.IsGroup)
	assert.Equal(t, "Daily Comics", g.Title)
	assert.Equal(t, "fun", g.Category)
	assert.Equal(t, []string{a, b}, g.Members)
	assert.Equal(t, []string{"Entry a1", "Entry shared"}, titles(g.Entries))
	assert.Equal(t, a, g.Entries[1].FeedURL, "first member wins duplicates")
}

func TestTransform_GroupDigest(t *testing.T) {
	const a = "https://a.example.com/feed"
	day := 24 * time.Hour
	feeds := []FeedInput{{
		Settings: domain.FeedSettings{URL: a, Group: "g"},
		Snapshot: snapshotOf(a, raw("1", 3*day), raw("2", 3*day+time.Hour), raw("3", 0)),
	}}
	groups := []GroupInput{{
		Key:     "g",
		Members: []string{a},
		Settings: domain.FeedSettings{Group: "g", Digest: &domain.DigestSpec{
			Interval:  domain.IntervalDay,
			IDSource:  "link",
			IDPattern: regexp.MustCompile(`example\.com/(\d)`),
			Title:     `Digest \1`,
		}},
	}}

	out := newTestPipeline().Transform(context.Background(), feeds, groups)
	entries := out.ByKey()["group:g"].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, "Entry 3", entries[0].Title)
	assert.True(t, entries[1].Aggregate)
	assert.Equal(t, "Digest 2", entries[1].Title)
	assert.Equal(t, 2, entries[1].Members)
}

func TestTransform_FailuresAreIsolated(t *testing.T) {
	const (
		bad  = "https://bad.example.com/feed"
		good = "https://good.example.com/feed"
	)
	ruleErr := &coreerrors.RuleError{Node: "feed " + bad, Rule: "ignore.x", Pattern: "(", Err: errors.New("missing )")}

	out := newTestPipeline().Transform(context.Background(), []FeedInput{
		{Settings: domain.FeedSettings{URL: bad}, Err: ruleErr},
		{Settings: domain.FeedSettings{URL: good}, Snapshot: snapshotOf(good, raw("g", time.Hour))},
		{Settings: domain.FeedSettings{URL: "https://nocache.example.com/feed"}},
	}, []GroupInput{{Key: "broken", Err: errors.New("boom")}})

	require.Len(t, out.Results, 1)
	assert.Equal(t, good, out.Results[0].Key)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, bad, out.Failures[0].Key)
	assert.True(t, coreerrors.IsRule(out.Failures[0].Err))
	assert.Equal(t, "group:broken", out.Failures[1].Key)
}

func TestTransform_Idempotent(t *testing.T) {
	const url = "https://example.com/feed"
	day := 24 * time.Hour
	input := func() []FeedInput {
		return []FeedInput{{
			Settings: domain.FeedSettings{
				URL:         url,
				MaxEntryNum: 4,
				Strip:       domain.RuleSet{"p": rule("p", "content", `</?p>`)},
				Digest:      &domain.DigestSpec{Interval: domain.IntervalDay},
			},
			Snapshot: snapshotOf(url, raw("1", day), raw("2", 2*day), raw("3", 2*day+time.Hour), raw("4", 0)),
		}}
	}

	first := newTestPipeline().Transform(context.Background(), input(), nil)
	second := newTestPipeline().Transform(context.Background(), input(), nil)
	assert.Equal(t, first, second)
}

func TestTransform_FallbackTitle(t *testing.T) {
	const url = "https://example.com/feed"
	untitled := raw("u", time.Hour)
	untitled.Title = ""
	bare := raw("b", 2*time.Hour)
	bare.Title, bare.Summary, bare.Content = "", "", ""

	out := newTestPipeline().Transform(context.Background(), []FeedInput{{
		Settings: domain.FeedSettings{URL: url},
		Snapshot: snapshotOf(url, untitled, bare),
	}}, nil)

	entries := out.Results[0].Entries
	assert.Equal(t, "summary u", entries[0].Title)
	assert.Equal(t, "https://example.com/b", entries[1].Title)
	assert.Equal(t, "Feed "+url, entries[0].FeedTitle)
}
