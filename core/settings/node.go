// ABOUTME: Typed configuration tree: global, category, group and feed nodes
// ABOUTME: Each node holds only the keys explicitly set at its level

package settings

import (
	"fmt"

	"digests-builder/core/domain"
)

// Level is the position of a node in the configuration hierarchy
type Level int

const (
	LevelGlobal Level = iota
	LevelCategory
	LevelGroup
	LevelFeed
)

// String returns the level name used in messages
func (l Level) String() string {
	switch l {
	case LevelCategory:
		return "category"
	case LevelGroup:
		return "group"
	case LevelFeed:
		return "feed"
	default:
		return "global"
	}
}

// Node is one layer of the configuration tree
type Node struct {
	Level Level

	// Key is the normalized lookup key of a category or group
	Key string

	// Name is the text the node was declared with
	Name string

	// Index is the declaration position of a feed
	Index int

	URL      string
	Title    *string
	Category *string
	Group    *string
	Disabled bool

	Options domain.Options
	Ignore  map[string]domain.RuleSpec
	Strip   map[string]domain.RuleSpec
	Digest  *domain.DigestConfig

	// problems are placement errors found while loading; they fail the
	// resolution of every feed whose chain includes this node
	problems []error
}

// Label names the node for error messages
func (n *Node) Label() string {
	switch n.Level {
	case LevelCategory:
		return fmt.Sprintf("category '%s'", n.Name)
	case LevelGroup:
		return fmt.Sprintf("group '%s'", n.Name)
	case LevelFeed:
		if n.URL != "" {
			return "feed " + n.URL
		}
		return fmt.Sprintf("feed #%d", n.Index+1)
	default:
		return "global"
	}
}

// Problems returns the placement errors recorded for the node
func (n *Node) Problems() []error {
	return n.problems
}

// FeedRef is a configured feed as seen by the fetch phase
type FeedRef struct {
	URL      string
	Index    int
	Group    string
	Disabled bool
}

// Warning is a non-fatal configuration finding
type Warning struct {
	Node    string
	Key     string
	Message string
}

// String formats the warning
func (w Warning) String() string {
	if w.Key == "" {
		return fmt.Sprintf("%s: %s", w.Node, w.Message)
	}
	return fmt.Sprintf("%s, key '%s': %s", w.Node, w.Key, w.Message)
}
