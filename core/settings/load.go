// ABOUTME: Loads the TOML feed configuration into a typed node tree
// ABOUTME: Records placement errors per node instead of failing the whole load

package settings

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"digests-builder/core/domain"
	coreerrors "digests-builder/core/errors"
	"digests-builder/core/interfaces"
	"github.com/pelletier/go-toml/v2"
)

// Store holds the configuration tree and the pending URL mutations.
// It is the only writer of the configuration file.
type Store struct {
	mu sync.RWMutex

	path string
	raw  []byte

	global     *Node
	categories map[string]*Node
	groups     map[string]*Node
	groupOrder []string
	feeds      []*Node
	byURL      map[string]*Node

	warnings []Warning
	pending  []Mutation
	logger   interfaces.Logger
}

// Load reads and parses the configuration file at path
func Load(path string, logger interfaces.Logger) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	s, err := Parse(data, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// Parse builds a store from TOML text. Only syntax errors fail the parse;
// misplaced keys are recorded on their node and surface at resolution.
func Parse(data []byte, logger interfaces.Logger) (*Store, error) {
	var doc map[string]interface{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	s := &Store{
		raw:        append([]byte(nil), data...),
		categories: make(map[string]*Node),
		groups:     make(map[string]*Node),
		byURL:      make(map[string]*Node),
		logger:     interfaces.OrNop(logger),
	}
	s.build(doc)

	for _, w := range s.warnings {
		s.logger.Warn("Configuration warning", map[string]interface{}{
			"node":    w.Node,
			"key":     w.Key,
			"message": w.Message,
		})
	}
	return s, nil
}

func (s *Store) build(doc map[string]interface{}) {
	s.global = &Node{Level: LevelGlobal, Name: "global"}

	global := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		switch k {
		case "categories", "groups", "feeds":
		default:
			global[k] = v
		}
	}
	s.fill(s.global, global)

	for _, name := range sortedTableKeys(s, doc, "categories") {
		table, _ := doc["categories"].(map[string]interface{})[name].(map[string]interface{})
		n := &Node{Level: LevelCategory, Key: NormalizeKey(name), Name: name}
		s.fill(n, table)
		s.categories[n.Key] = n
	}

	for _, name := range sortedTableKeys(s, doc, "groups") {
		table, _ := doc["groups"].(map[string]interface{})[name].(map[string]interface{})
		n := &Node{Level: LevelGroup, Key: NormalizeKey(name), Name: name}
		s.fill(n, table)
		s.groups[n.Key] = n
	}

	rawFeeds, ok := doc["feeds"]
	if !ok {
		return
	}
	list, ok := rawFeeds.([]interface{})
	if !ok {
		s.warn("global", "feeds", "must be an array of tables")
		return
	}

	for i, item := range list {
		table, ok := item.(map[string]interface{})
		if !ok {
			s.warn(fmt.Sprintf("feed #%d", i+1), "", "not a table, skipped")
			continue
		}
		n := &Node{Level: LevelFeed, Index: i}
		if u, ok := table["url"].(string); ok {
			n.URL = u
		}
		s.fill(n, table)

		if n.URL == "" {
			s.warn(n.Label(), "url", "missing, feed skipped")
			continue
		}
		canonical, err := domain.CanonicalURL(n.URL)
		if err != nil {
			s.warn(n.Label(), "url", err.Error()+", feed skipped")
			continue
		}
		n.URL = canonical
		if _, dup := s.byURL[canonical]; dup {
			s.warn(n.Label(), "url", "duplicate feed, skipped")
			continue
		}

		if n.Group != nil {
			key := NormalizeKey(*n.Group)
			g, ok := s.groups[key]
			if !ok {
				g = &Node{Level: LevelGroup, Key: key, Name: *n.Group}
				s.groups[key] = g
			}
			if n.Category != nil {
				s.warn(n.Label(), "category", fmt.Sprintf("ignored on member of %s, the group category applies", g.Label()))
			}
		}

		s.feeds = append(s.feeds, n)
		s.byURL[canonical] = n
	}

	seen := make(map[string]bool)
	for _, f := range s.feeds {
		if f.Group == nil {
			continue
		}
		key := NormalizeKey(*f.Group)
		if !seen[key] {
			seen[key] = true
			s.groupOrder = append(s.groupOrder, key)
		}
	}
	for key, g := range s.groups {
		if !seen[key] {
			s.warn(g.Label(), "", "has no member feeds")
		}
	}
}

// sortedTableKeys returns the sub-table names of doc[section] in a stable order
func sortedTableKeys(s *Store, doc map[string]interface{}, section string) []string {
	raw, ok := doc[section]
	if !ok {
		return nil
	}
	tables, ok := raw.(map[string]interface{})
	if !ok {
		s.warn("global", section, "must be a table of tables")
		return nil
	}
	names := make([]string, 0, len(tables))
	for name, v := range tables {
		if _, ok := v.(map[string]interface{}); !ok {
			s.warn("global", section+"."+name, "must be a table")
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) warn(node, key, message string) {
	s.warnings = append(s.warnings, Warning{Node: node, Key: key, Message: message})
}

func (n *Node) fail(key, message string) {
	n.problems = append(n.problems, &coreerrors.ConfigError{Node: n.Label(), Key: key, Message: message})
}

// fill copies the keys of table onto n, checking where each key may appear
func (s *Store) fill(n *Node, table map[string]interface{}) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := table[key]
		switch key {
		case "url":
			if str, ok := stringValue(n, key, value); ok {
				if n.Level != LevelFeed {
					n.fail(key, "only allowed on feeds")
					continue
				}
				n.URL = str
			}
		case "title":
			if str, ok := stringValue(n, key, value); ok {
				if n.Level == LevelGlobal {
					n.fail(key, "only allowed on feeds, groups and categories")
					continue
				}
				n.Title = &str
			}
		case "category":
			if str, ok := stringValue(n, key, value); ok {
				if n.Level == LevelCategory {
					n.fail(key, "cannot be set on a category")
					continue
				}
				n.Category = &str
			}
		case "group":
			if str, ok := stringValue(n, key, value); ok {
				if n.Level != LevelFeed {
					n.fail(key, "only allowed on feeds")
					continue
				}
				n.Group = &str
			}
		case "disabled":
			if b, ok := boolValue(n, key, value); ok {
				if n.Level != LevelFeed {
					n.fail(key, "only allowed on feeds")
					continue
				}
				n.Disabled = b
			}
		case "max_entry_num":
			n.Options.MaxEntryNum = intValue(n, key, value)
		case "max_entry_age":
			n.Options.MaxEntryAge = intValue(n, key, value)
		case "max_img_width":
			n.Options.MaxImgWidth = intValue(n, key, value)
		case "full_content":
			if b, ok := boolValue(n, key, value); ok {
				n.Options.FullContent = &b
			}
		case "sort":
			if b, ok := boolValue(n, key, value); ok {
				n.Options.Sort = &b
			}
		case "hide":
			if b, ok := boolValue(n, key, value); ok {
				n.Options.Hide = &b
			}
		case "date_format":
			if str, ok := stringValue(n, key, value); ok {
				n.Options.DateFormat = &str
			}
		case "timezone":
			if str, ok := stringValue(n, key, value); ok {
				if n.Level == LevelCategory {
					s.logger.Debug("Ignoring category timezone", map[string]interface{}{"node": n.Label()})
					continue
				}
				n.Options.Timezone = &str
			}
		case "tzoffset":
			var hours float64
			switch v := value.(type) {
			case int64:
				hours = float64(v)
			case float64:
				hours = v
			default:
				n.fail(key, "must be a number of hours")
				continue
			}
			if n.Level == LevelCategory {
				s.logger.Debug("Ignoring category tzoffset", map[string]interface{}{"node": n.Label()})
				continue
			}
			n.Options.TZOffset = &hours
		case "ignore":
			n.Ignore = ruleTable(n, key, value)
		case "strip":
			n.Strip = ruleTable(n, key, value)
		case "digest":
			n.Digest = digestTable(n, value)
		default:
			s.warn(n.Label(), key, "unknown key ignored")
		}
	}
}

func stringValue(n *Node, key string, value interface{}) (string, bool) {
	str, ok := value.(string)
	if !ok {
		n.fail(key, "must be a string")
	}
	return str, ok
}

func boolValue(n *Node, key string, value interface{}) (bool, bool) {
	b, ok := value.(bool)
	if !ok {
		n.fail(key, "must be a boolean")
	}
	return b, ok
}

func intValue(n *Node, key string, value interface{}) *int {
	v, ok := value.(int64)
	if !ok {
		n.fail(key, "must be an integer")
		return nil
	}
	if v < 0 {
		n.fail(key, "cannot be negative")
		return nil
	}
	i := int(v)
	return &i
}

func ruleTable(n *Node, key string, value interface{}) map[string]domain.RuleSpec {
	table, ok := value.(map[string]interface{})
	if !ok {
		n.fail(key, "must be a table of named rules")
		return nil
	}
	rules := make(map[string]domain.RuleSpec, len(table))
	for name, raw := range table {
		ruleKey := key + "." + name
		fields, ok := raw.(map[string]interface{})
		if !ok {
			n.fail(ruleKey, "must be a table with source and find")
			continue
		}
		source, okSource := fields["source"].(string)
		find, okFind := fields["find"].(string)
		if !okSource || !okFind || source == "" {
			n.fail(ruleKey, "needs string keys source and find")
			continue
		}
		rules[name] = domain.RuleSpec{Source: source, Find: find}
	}
	return rules
}

func digestTable(n *Node, value interface{}) *domain.DigestConfig {
	table, ok := value.(map[string]interface{})
	if !ok {
		n.fail("digest", "must be a table")
		return nil
	}
	d := &domain.DigestConfig{}
	for k, v := range table {
		dk := "digest." + k
		switch k {
		case "partial":
			b, ok := v.(bool)
			if !ok {
				n.fail(dk, "must be a boolean")
				continue
			}
			d.Partial = b
		case "interval", "id_source", "id_find", "link", "title":
			str, ok := v.(string)
			if !ok {
				n.fail(dk, "must be a string")
				continue
			}
			switch k {
			case "interval":
				d.Interval = str
			case "id_source":
				d.IDSource = str
			case "id_find":
				d.IDFind = str
			case "link":
				d.Link = str
			case "title":
				d.Title = str
			}
		default:
			n.fail(dk, "unknown digest key")
		}
	}
	if (d.IDFind == "") != (d.IDSource == "") {
		n.fail("digest", "id_source and id_find must be set together")
	}
	return d
}
