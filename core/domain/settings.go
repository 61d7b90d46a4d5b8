// ABOUTME: Resolved per-feed settings produced by the configuration store each run
// ABOUTME: Defines rules, digest specifications and digest interval arithmetic

package domain

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Rule is a named per-field regular expression used by ignore and strip
type Rule struct {
	Name    string
	Source  string
	Find    string
	Pattern *regexp.Regexp
}

// RuleSet maps rule names to rules
type RuleSet map[string]Rule

// Sorted returns the rules ordered by name so application order is stable
func (rs RuleSet) Sorted() []Rule {
	rules := make([]Rule, 0, len(rs))
	for _, r := range rs {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules
}

// Interval is a digest bucket width
type Interval string

const (
	IntervalHour  Interval = "hour"
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// ParseInterval validates an interval name
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case IntervalHour, IntervalDay, IntervalWeek, IntervalMonth:
		return Interval(s), nil
	case "":
		return IntervalDay, nil
	}
	return "", fmt.Errorf("unknown digest interval %q", s)
}

// Start returns the start of the interval containing t, in loc.
// Weeks start on Monday.
func (iv Interval) Start(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	y, m, d := t.Date()
	switch iv {
	case IntervalHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case IntervalWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case IntervalMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// DigestSpec configures digest aggregation for a feed or group
type DigestSpec struct {
	Interval Interval

	// IDSource names the entry field scanned with IDPattern
	IDSource  string
	IDFind    string
	IDPattern *regexp.Regexp

	// Link and Title are templates expanded with \N backreferences
	Link  string
	Title string

	Partial bool
}

// HasIDRule reports whether buckets must be identified by a matching member
func (d *DigestSpec) HasIDRule() bool {
	return d != nil && d.IDPattern != nil
}

// Category is a resolved category reference
type Category struct {
	Key   string
	Title string
}

// FeedSettings is the fully merged configuration for one feed or group
type FeedSettings struct {
	// URL is the canonical feed URL; empty for groups
	URL string

	// Title is the configured display title, empty to use the parser's
	Title string

	MaxEntryNum int
	MaxEntryAge int
	FullContent bool
	MaxImgWidth int
	DateFormat  string
	Sort        bool
	Hide        bool

	// SourceLocation reinterprets parsed timestamps; nil keeps them as parsed
	SourceLocation *time.Location

	// DisplayLocation is used for digest bucketing and output times
	DisplayLocation *time.Location

	Ignore RuleSet
	Strip  RuleSet
	Digest *DigestSpec

	Category Category

	// Group is the normalized key of the group this feed belongs to
	Group string

	Disabled bool
}

// Display returns the display location, defaulting to UTC
func (s *FeedSettings) Display() *time.Location {
	if s.DisplayLocation == nil {
		return time.UTC
	}
	return s.DisplayLocation
}

// Result is the final entry sequence of one logical feed or group
type Result struct {
	Key           string
	Title         string
	Link          string
	Category      string
	CategoryTitle string
	Group         string
	IsGroup       bool
	Hide          bool
	Members       []string
	Entries       []Entry
}
