// ABOUTME: Parser interface for the external feed-format library
// ABOUTME: Decouples fetch logic from RSS/Atom syntax handling

package interfaces

import "digests-builder/core/domain"

// ParsedFeed is the normalized result of parsing a feed document
type ParsedFeed struct {
	Title   string
	Link    string
	Entries []domain.RawEntry
}

// FeedParser turns raw feed bytes into normalized entries
type FeedParser interface {
	Parse(body []byte) (*ParsedFeed, error)
}
