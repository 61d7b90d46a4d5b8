// ABOUTME: Digest aggregator buckets entries by time interval and synthesizes one entry per bucket
// ABOUTME: Buckets are scanned oldest to newest and the newest, still open bucket passes through

package digest

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"digests-builder/core/domain"
)

// bucket is one interval of entries, members ordered oldest first
type bucket struct {
	start   time.Time
	members []domain.Entry
}

// Aggregate applies spec to entries and returns the result newest first.
// Buckets are aligned to the spec interval in loc (UTC when nil).
//
// A closed bucket is identified by the first member, oldest to newest, whose
// IDSource field matches IDPattern; it becomes one aggregate entry. Without
// an id rule bucket members are kept as they are. With an id rule but no
// identifying member the bucket is dropped, or kept as one partial entry
// labelled with its oldest member when Partial is set.
func Aggregate(entries []domain.Entry, spec *domain.DigestSpec, loc *time.Location) []domain.Entry {
	if spec == nil || len(entries) == 0 {
		return entries
	}
	if loc == nil {
		loc = time.UTC
	}

	buckets := split(entries, spec.Interval, loc)

	out := make([]domain.Entry, 0, len(entries))
	for i, b := range buckets {
		if i == len(buckets)-1 {
			// the newest bucket can still grow
			out = append(out, b.members...)
			continue
		}
		out = append(out, collapse(b, spec)...)
	}

	domain.SortNewestFirst(out)
	return out
}

// split sorts a copy of entries oldest first and cuts it at interval boundaries
func split(entries []domain.Entry, interval domain.Interval, loc *time.Location) []bucket {
	sorted := make([]domain.Entry, len(entries))
	copy(sorted, entries)
	domain.SortOldestFirst(sorted)

	var buckets []bucket
	for _, e := range sorted {
		start := interval.Start(e.Published, loc)
		if n := len(buckets); n > 0 && buckets[n-1].start.Equal(start) {
			buckets[n-1].members = append(buckets[n-1].members, e)
			continue
		}
		buckets = append(buckets, bucket{start: start, members: []domain.Entry{e}})
	}
	return buckets
}

func collapse(b bucket, spec *domain.DigestSpec) []domain.Entry {
	if !spec.HasIDRule() {
		return b.members
	}

	for _, m := range b.members {
		text, ok := m.Field(spec.IDSource)
		if !ok {
			continue
		}
		match := spec.IDPattern.FindStringSubmatchIndex(text)
		if match == nil {
			continue
		}
		e := synthesize(b, m)
		if spec.Link != "" {
			e.Link = expand(spec.IDPattern, spec.Link, text, match)
		}
		if spec.Title != "" {
			e.Title = expand(spec.IDPattern, spec.Title, text, match)
		}
		e.ID = digestID(b.start, e.Link)
		return []domain.Entry{e}
	}

	if !spec.Partial {
		return nil
	}
	e := synthesize(b, b.members[0])
	e.Partial = true
	e.ID = digestID(b.start, e.Link)
	return []domain.Entry{e}
}

// synthesize builds the aggregate entry of b labelled with label's title and link
func synthesize(b bucket, label domain.Entry) domain.Entry {
	var content strings.Builder
	for i, m := range b.members {
		if i > 0 {
			content.WriteByte('\n')
		}
		fmt.Fprintf(&content, "<h1><a href=\"%s\">%s</a></h1>\n%s",
			html.EscapeString(m.Link), html.EscapeString(m.Title), m.Content)
	}

	first := b.members[0]
	return domain.Entry{
		Title:     label.Title,
		Link:      label.Link,
		Published: meanTime(b.members),
		Content:   content.String(),
		FeedURL:   first.FeedURL,
		FeedTitle: first.FeedTitle,
		Aggregate: true,
		Members:   len(b.members),
	}
}

func digestID(start time.Time, link string) string {
	return "digest:" + start.UTC().Format(time.RFC3339) + ":" + link
}

// meanTime averages member timestamps at second precision
func meanTime(members []domain.Entry) time.Time {
	base := members[0].Published
	var offset int64
	for _, m := range members {
		offset += m.Published.Unix() - base.Unix()
	}
	return time.Unix(base.Unix()+offset/int64(len(members)), 0).In(base.Location())
}

var backref = regexp.MustCompile(`\\(\d+|g<(\w+)>)`)

// expand fills a template using backslash group references (\1, \g<name>)
func expand(re *regexp.Regexp, template, src string, match []int) string {
	tmpl := strings.ReplaceAll(template, "$", "$$")
	tmpl = backref.ReplaceAllStringFunc(tmpl, func(ref string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(ref[1:], "g<"), ">")
		return "${" + name + "}"
	})
	return string(re.ExpandString(nil, tmpl, src, match))
}
