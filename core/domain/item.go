// ABOUTME: Entry domain models for raw parser output and pipeline entries
// ABOUTME: Provides field lookup used by ignore, strip and digest rules

package domain

import "time"

// RawEntry is an entry as normalized from the feed parser
type RawEntry struct {
	// ID is the entry GUID, empty when the feed has none
	ID string `json:"id,omitempty"`

	Title string `json:"title"`
	Link  string `json:"link"`

	// Published is the parser's best-effort timestamp (published, else updated)
	Published time.Time `json:"published"`

	// PublishedRaw is the unparsed date string, used when date_format is set
	PublishedRaw string `json:"published_raw,omitempty"`

	Summary string `json:"summary,omitempty"`
	Content string `json:"content,omitempty"`

	// Fields holds parser-native fields addressable by rules
	Fields map[string]string `json:"fields,omitempty"`
}

// Entry is an entry flowing through the transformation pipeline
type Entry struct {
	ID        string
	Title     string
	Link      string
	Published time.Time
	Summary   string

	// Content is the display content chosen by full_content
	Content string

	Fields map[string]string

	// FeedURL and FeedTitle identify the source feed
	FeedURL   string
	FeedTitle string

	// Aggregate marks a synthesized digest entry, Partial one built without
	// its identifying member
	Aggregate bool
	Partial   bool
	Members   int

	// AgeClasses are renderer hints such as "today" and "thisweek"
	AgeClasses []string
}

// Field returns the text of a named field.
// title, link, content, summary and id address entry attributes; any other
// name is looked up in Fields.
func (e *Entry) Field(name string) (string, bool) {
	switch name {
	case "title":
		return e.Title, true
	case "link":
		return e.Link, true
	case "content", "description":
		return e.Content, true
	case "summary":
		return e.Summary, true
	case "id", "guid":
		if e.ID != "" {
			return e.ID, true
		}
	}
	v, ok := e.Fields[name]
	return v, ok
}

// SetField replaces the text of a named field
func (e *Entry) SetField(name, value string) {
	switch name {
	case "title":
		e.Title = value
	case "link":
		e.Link = value
	case "content", "description":
		e.Content = value
	case "summary":
		e.Summary = value
	case "id", "guid":
		e.ID = value
	default:
		if e.Fields == nil {
			e.Fields = make(map[string]string)
		}
		e.Fields[name] = value
	}
}

// Key identifies an entry for de-duplication
func (e *Entry) Key() string {
	if e.ID != "" {
		return "id:" + e.ID
	}
	if e.Link != "" {
		return "link:" + e.Link
	}
	return "title:" + e.Title + "@" + e.Published.UTC().Format(time.RFC3339)
}

// Clone returns a deep copy of the entry
func (e Entry) Clone() Entry {
	if e.Fields != nil {
		fields := make(map[string]string, len(e.Fields))
		for k, v := range e.Fields {
			fields[k] = v
		}
		e.Fields = fields
	}
	if e.AgeClasses != nil {
		e.AgeClasses = append([]string(nil), e.AgeClasses...)
	}
	return e
}
