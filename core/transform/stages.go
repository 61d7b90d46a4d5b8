package transform

import (
	"sort"
	"time"
	"unicode/utf8"

	"digests-builder/core/domain"
	htmlutil "digests-builder/pkg/utils/html"
)

const fallbackTitleLength = 80

// strip removes every match of each rule from the rule's field
func strip(entries []domain.Entry, rules domain.RuleSet) {
	if len(rules) == 0 {
		return
	}
	sorted := rules.Sorted()
	for i := range entries {
		for _, r := range sorted {
			if v, ok := entries[i].Field(r.Source); ok {
				entries[i].SetField(r.Source, r.Pattern.ReplaceAllString(v, ""))
			}
		}
	}
}

// ignore drops entries with a field matched by any rule
func ignore(entries []domain.Entry, rules domain.RuleSet) []domain.Entry {
	if len(rules) == 0 {
		return entries
	}
	sorted := rules.Sorted()
	out := entries[:0]
	for _, e := range entries {
		if !ignored(&e, sorted) {
			out = append(out, e)
		}
	}
	return out
}

func ignored(e *domain.Entry, rules []domain.Rule) bool {
	for _, r := range rules {
		if v, ok := e.Field(r.Source); ok && r.Pattern.MatchString(v) {
			return true
		}
	}
	return false
}

// limitAge drops entries more than maxDays whole days older than now
func limitAge(entries []domain.Entry, maxDays int, now time.Time) []domain.Entry {
	if maxDays <= 0 {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if ageDays(e.Published, now) <= maxDays {
			out = append(out, e)
		}
	}
	return out
}

// limitCount keeps the newest n entries in their current order
func limitCount(entries []domain.Entry, n int) []domain.Entry {
	if n <= 0 || len(entries) <= n {
		return entries
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return entries[order[a]].Published.After(entries[order[b]].Published)
	})

	keep := make([]bool, len(entries))
	for _, i := range order[:n] {
		keep[i] = true
	}
	out := entries[:0]
	for i, e := range entries {
		if keep[i] {
			out = append(out, e)
		}
	}
	return out
}

func ageDays(t, now time.Time) int {
	return int(now.Sub(t) / (24 * time.Hour))
}

// ageClasses returns the renderer hints for an entry of the given time
func ageClasses(t, now time.Time) []string {
	days := ageDays(t, now)
	var classes []string
	if days < 1 {
		classes = append(classes, "today")
	}
	if days < 7 {
		classes = append(classes, "thisweek")
	}
	return classes
}

// fallbackTitle derives a title for entries that have none
func fallbackTitle(e *domain.Entry) string {
	text := htmlutil.StripHTML(e.Content)
	if text == "" {
		text = htmlutil.StripHTML(e.Summary)
	}
	if text == "" {
		return e.Link
	}
	if utf8.RuneCountInString(text) <= fallbackTitleLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:fallbackTitleLength]) + "…"
}
