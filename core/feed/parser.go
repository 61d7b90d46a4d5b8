// ABOUTME: Feed parser turns RSS/Atom/JSON Feed documents into raw entries
// ABOUTME: Wraps gofeed and exposes parser-native fields for rules

package feed

import (
	"bytes"
	"errors"
	"strings"

	"digests-builder/core/domain"
	"digests-builder/core/interfaces"
	"digests-builder/pkg/utils/duration"
	htmlutil "digests-builder/pkg/utils/html"
	timeutil "digests-builder/pkg/utils/time"
	"github.com/mmcdole/gofeed"
)

// Parser implements interfaces.FeedParser on top of gofeed
type Parser struct{}

// NewParser creates a feed parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses feed content from bytes
func (p *Parser) Parse(content []byte) (*interfaces.ParsedFeed, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errors.New("empty feed content")
	}

	// gofeed parsers keep per-document state, so each call gets its own
	parsedFeed, err := gofeed.NewParser().Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	out := &interfaces.ParsedFeed{
		Title:   strings.TrimSpace(parsedFeed.Title),
		Link:    parsedFeed.Link,
		Entries: make([]domain.RawEntry, 0, len(parsedFeed.Items)),
	}
	for _, item := range parsedFeed.Items {
		out.Entries = append(out.Entries, convertItem(item, parsedFeed))
	}
	return out, nil
}

// convertItem converts a gofeed item to a raw entry
func convertItem(item *gofeed.Item, feed *gofeed.Feed) domain.RawEntry {
	entry := domain.RawEntry{
		ID:      item.GUID,
		Title:   strings.TrimSpace(item.Title),
		Link:    item.Link,
		Summary: item.Description,
		Content: item.Content,
		Fields:  make(map[string]string),
	}

	// Published wins over updated, matching what readers display
	switch {
	case item.PublishedParsed != nil:
		entry.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		entry.Published = *item.UpdatedParsed
	case item.Published != "":
		entry.Published = timeutil.ParseFlexibleTime(item.Published)
	case item.Updated != "":
		entry.Published = timeutil.ParseFlexibleTime(item.Updated)
	}
	entry.PublishedRaw = item.Published
	if entry.PublishedRaw == "" {
		entry.PublishedRaw = item.Updated
	}

	if item.ITunesExt != nil && item.ITunesExt.Author != "" {
		entry.Fields["author"] = item.ITunesExt.Author
	} else if item.Author != nil && item.Author.Name != "" {
		entry.Fields["author"] = item.Author.Name
	}

	if len(item.Categories) > 0 {
		entry.Fields["categories"] = strings.Join(item.Categories, ", ")
	}
	if item.Updated != "" {
		entry.Fields["updated"] = item.Updated
	}
	if item.GUID != "" {
		entry.Fields["guid"] = item.GUID
	}

	for _, enc := range item.Enclosures {
		if enc.URL != "" {
			entry.Fields["enclosure"] = enc.URL
			entry.Fields["enclosure_type"] = enc.Type
			break
		}
	}

	if thumb := findThumbnail(item, feed); thumb != "" {
		entry.Fields["thumbnail"] = thumb
	}

	if item.ITunesExt != nil && item.ITunesExt.Duration != "" {
		entry.Fields["duration"] = duration.ParseToSeconds(item.ITunesExt.Duration)
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	if text := htmlutil.StripHTML(body); text != "" {
		entry.Fields["text"] = text
	}

	for k, v := range item.Custom {
		if _, taken := entry.Fields[k]; !taken {
			entry.Fields[k] = v
		}
	}

	if len(entry.Fields) == 0 {
		entry.Fields = nil
	}
	return entry
}

// findThumbnail finds thumbnail from various sources
func findThumbnail(item *gofeed.Item, feed *gofeed.Feed) string {
	// 1. iTunes extension image
	if item.ITunesExt != nil && item.ITunesExt.Image != "" {
		return item.ITunesExt.Image
	}

	// 2. Image enclosures
	for _, enc := range item.Enclosures {
		if enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}

	// 3. Item image
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	// 4. Feed level iTunes image
	if feed != nil && feed.ITunesExt != nil && feed.ITunesExt.Image != "" {
		return feed.ITunesExt.Image
	}

	// 5. Feed image
	if feed != nil && feed.Image != nil && feed.Image.URL != "" {
		return feed.Image.URL
	}

	return ""
}
