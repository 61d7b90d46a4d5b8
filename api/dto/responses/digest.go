// ABOUTME: Artifact DTOs written for the static page renderer
// ABOUTME: Provides the JSON layout of one run's feeds, entries and failures

package responses

import "time"

// DigestResponse is the document produced by one run
type DigestResponse struct {
	RunID       string              `json:"run_id" doc:"Unique identifier of the run"`
	GeneratedAt time.Time           `json:"generated_at" doc:"When the run finished"`
	Feeds       []FeedResponse      `json:"feeds" doc:"Feeds then groups, in declaration order"`
	Errors      []FeedErrorResponse `json:"errors,omitempty" doc:"Feeds that could not be processed"`
}

// FeedResponse is one logical feed or group
type FeedResponse struct {
	Key           string          `json:"key" doc:"Canonical feed URL, or group:<key> for groups"`
	Title         string          `json:"title" doc:"Display title"`
	Link          string          `json:"link,omitempty" doc:"Site link reported by the feed"`
	Category      string          `json:"category,omitempty" doc:"Normalized category key"`
	CategoryTitle string          `json:"category_title,omitempty" doc:"Category display title"`
	Group         string          `json:"group,omitempty" doc:"Group key for group feeds"`
	IsGroup       bool            `json:"is_group,omitempty" doc:"Whether this is a synthesized group feed"`
	Hide          bool            `json:"hide,omitempty" doc:"Whether the renderer hides this feed by default"`
	Members       []string        `json:"members,omitempty" doc:"Member feed URLs of a group"`
	Entries       []EntryResponse `json:"entries" doc:"Final entries"`
}

// EntryResponse is one entry of a feed
type EntryResponse struct {
	ID         string    `json:"id,omitempty" doc:"Entry identifier"`
	Title      string    `json:"title" doc:"Entry title"`
	Link       string    `json:"link" doc:"Link to the full article"`
	Published  time.Time `json:"published" doc:"Effective publication time"`
	Content    string    `json:"content" doc:"Display content"`
	FeedURL    string    `json:"feed_url,omitempty" doc:"Source feed of the entry"`
	FeedTitle  string    `json:"feed_title,omitempty" doc:"Title of the source feed"`
	Author     string    `json:"author,omitempty" doc:"Author of the entry"`
	Aggregate  bool      `json:"aggregate,omitempty" doc:"Whether the entry is a digest"`
	Partial    bool      `json:"partial,omitempty" doc:"Whether the digest lacks its identifying entry"`
	Members    int       `json:"members,omitempty" doc:"Number of entries in a digest"`
	AgeClasses []string  `json:"age_classes,omitempty" doc:"Renderer hints such as today and thisweek"`
}

// FeedErrorResponse represents an error for a specific feed
type FeedErrorResponse struct {
	URL   string `json:"url" doc:"Feed URL or group key that failed"`
	Error string `json:"error" doc:"Error message"`
	Code  string `json:"code,omitempty" doc:"Error code"`
}
