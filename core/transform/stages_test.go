package transform

import (
	"testing"
	"time"

	"digests-builder/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestLimitAge_WholeDays(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	entries := []domain.Entry{
		{Title: "30 days 23h", Published: now.Add(-(30*24 + 23) * time.Hour)},
		{Title: "31 days", Published: now.Add(-31 * 24 * time.Hour)},
		{Title: "future", Published: now.Add(time.Hour)},
	}

	got := limitAge(entries, 30, now)
	assert.Equal(t, []string{"30 days 23h", "future"}, titles(got))
}

func TestLimitAge_Disabled(t *testing.T) {
	entries := []domain.Entry{{Title: "ancient"}}
	assert.Len(t, limitAge(entries, 0, time.Now()), 1)
}

func TestLimitCount_TiesKeepEarlierEntries(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []domain.Entry{
		{Title: "a", Published: at},
		{Title: "b", Published: at},
		{Title: "c", Published: at},
	}
	assert.Equal(t, []string{"a", "b"}, titles(limitCount(entries, 2)))
}

func TestFallbackTitle_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 20; i++ {
		long += "word "
	}
	e := domain.Entry{Content: "<p>" + long + "</p>"}

	title := fallbackTitle(&e)
	assert.Equal(t, fallbackTitleLength+1, len([]rune(title)))
	assert.Equal(t, "…", string([]rune(title)[fallbackTitleLength:]))
}
