// ABOUTME: Resolves the effective settings of a feed or group from the node tree
// ABOUTME: Precedence is feed > group > category > global with per-key exceptions

package settings

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"digests-builder/core/domain"
	coreerrors "digests-builder/core/errors"
	"digests-builder/core/group"
)

// Feeds returns the configured feeds in declaration order
func (s *Store) Feeds() []FeedRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]FeedRef, 0, len(s.feeds))
	for _, f := range s.feeds {
		ref := FeedRef{URL: f.URL, Index: f.Index, Disabled: f.Disabled}
		if f.Group != nil {
			ref.Group = NormalizeKey(*f.Group)
		}
		refs = append(refs, ref)
	}
	return refs
}

// Groups returns the keys of groups with members, in order of first member
func (s *Store) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.groupOrder...)
}

// GroupMembers returns the URLs of a group's member feeds in declaration order
func (s *Store) GroupMembers(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var urls []string
	for _, f := range s.members(key) {
		urls = append(urls, f.URL)
	}
	return urls
}

// Warnings returns the non-fatal findings of the load
func (s *Store) Warnings() []Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Warning(nil), s.warnings...)
}

func (s *Store) members(key string) []*Node {
	var out []*Node
	for _, f := range s.feeds {
		if f.Group != nil && NormalizeKey(*f.Group) == key {
			out = append(out, f)
		}
	}
	return out
}

// Resolve computes the effective settings of the feed with the given URL
func (s *Store) Resolve(feedURL string) (domain.FeedSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	canonical, err := domain.CanonicalURL(feedURL)
	if err != nil {
		return domain.FeedSettings{}, &coreerrors.ConfigError{Node: "feed " + feedURL, Key: "url", Message: err.Error()}
	}
	f, ok := s.byURL[canonical]
	if !ok {
		return domain.FeedSettings{}, &coreerrors.ConfigError{Node: "feed " + canonical, Message: "not configured"}
	}

	var g *Node
	if f.Group != nil {
		g = s.groups[NormalizeKey(*f.Group)]
	}

	// members take the group's category; a member's own category was
	// reported at load time and is ignored here
	categoryName := ""
	switch {
	case g != nil && g.Category != nil:
		categoryName = *g.Category
	case g == nil && f.Category != nil:
		categoryName = *f.Category
	case s.global.Category != nil:
		categoryName = *s.global.Category
	}
	c := s.categories[NormalizeKey(categoryName)]

	if err := problems(f, g, c, s.global); err != nil {
		return domain.FeedSettings{}, err
	}

	out := domain.FeedSettings{
		URL:      f.URL,
		Disabled: f.Disabled,
		Category: category(categoryName, c),
	}
	if f.Title != nil {
		out.Title = *f.Title
	}
	if g != nil {
		out.Group = g.Key
	}

	layers := optionLayers(f, g, c, s.global)
	applyOptions(&out, layers)

	label := f.Label()
	if out.SourceLocation, err = sourceLocation(label, f, g); err != nil {
		return domain.FeedSettings{}, err
	}
	if out.DisplayLocation, err = location(s.global.Label(), s.global.Options); err != nil {
		return domain.FeedSettings{}, err
	}

	if out.Ignore, err = compileRules(label, "ignore", ruleLayers(func(n *Node) map[string]domain.RuleSpec { return n.Ignore }, s.global, c, g, f)); err != nil {
		return domain.FeedSettings{}, err
	}
	if out.Strip, err = compileRules(label, "strip", ruleLayers(func(n *Node) map[string]domain.RuleSpec { return n.Strip }, s.global, c, g, f)); err != nil {
		return domain.FeedSettings{}, err
	}

	// a group digest belongs to the group feed only
	for _, n := range []*Node{f, c, s.global} {
		if n != nil && n.Digest != nil {
			if out.Digest, err = compileDigest(label, n.Digest); err != nil {
				return domain.FeedSettings{}, err
			}
			break
		}
	}

	return out, nil
}

// ResolveGroup computes the settings of the synthesized feed of a group.
// The group node wins, then options merged from its members, then the
// group's category and the global node.
func (s *Store) ResolveGroup(key string) (domain.FeedSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[key]
	if !ok {
		return domain.FeedSettings{}, &coreerrors.ConfigError{Node: fmt.Sprintf("group '%s'", key), Message: "not configured"}
	}

	categoryName := ""
	if g.Category != nil {
		categoryName = *g.Category
	} else if s.global.Category != nil {
		categoryName = *s.global.Category
	}
	c := s.categories[NormalizeKey(categoryName)]

	if err := problems(g, c, s.global); err != nil {
		return domain.FeedSettings{}, err
	}

	members := s.members(key)
	groupMembers := make([]group.Member, 0, len(members))
	for _, m := range members {
		groupMembers = append(groupMembers, group.Member{Name: m.URL, Options: m.Options})
	}
	merged, conflicts := group.MergeOptions(groupMembers)
	for _, conflict := range conflicts {
		s.logger.Warn("Conflicting member settings in group", map[string]interface{}{
			"group":   g.Label(),
			"key":     conflict.Key,
			"members": conflict.Members,
			"winner":  conflict.Winner,
			"differs": conflict.Differs,
		})
	}

	out := domain.FeedSettings{
		Title:    g.Name,
		Group:    g.Key,
		Category: category(categoryName, c),
	}
	if g.Title != nil {
		out.Title = *g.Title
	}

	layers := []domain.Options{g.Options, merged}
	if c != nil {
		layers = append(layers, c.Options)
	}
	layers = append(layers, s.global.Options)
	applyOptions(&out, layers)

	var err error
	if out.DisplayLocation, err = location(s.global.Label(), s.global.Options); err != nil {
		return domain.FeedSettings{}, err
	}
	if g.Digest != nil {
		if out.Digest, err = compileDigest(g.Label(), g.Digest); err != nil {
			return domain.FeedSettings{}, err
		}
	}
	return out, nil
}

// problems joins the placement errors of every node in the chain
func problems(nodes ...*Node) error {
	var errs []error
	for _, n := range nodes {
		if n != nil {
			errs = append(errs, n.problems...)
		}
	}
	return errors.Join(errs...)
}

func optionLayers(nodes ...*Node) []domain.Options {
	layers := make([]domain.Options, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			layers = append(layers, n.Options)
		}
	}
	return layers
}

// applyOptions sets each scalar key from the first layer that has it
func applyOptions(out *domain.FeedSettings, layers []domain.Options) {
	for i := len(layers) - 1; i >= 0; i-- {
		o := layers[i]
		if o.MaxEntryNum != nil {
			out.MaxEntryNum = *o.MaxEntryNum
		}
		if o.MaxEntryAge != nil {
			out.MaxEntryAge = *o.MaxEntryAge
		}
		if o.MaxImgWidth != nil {
			out.MaxImgWidth = *o.MaxImgWidth
		}
		if o.FullContent != nil {
			out.FullContent = *o.FullContent
		}
		if o.Sort != nil {
			out.Sort = *o.Sort
		}
		if o.Hide != nil {
			out.Hide = *o.Hide
		}
		if o.DateFormat != nil {
			out.DateFormat = *o.DateFormat
		}
	}
}

func category(name string, node *Node) domain.Category {
	if name == "" {
		return domain.Category{}
	}
	cat := domain.Category{Key: NormalizeKey(name), Title: name}
	if node != nil {
		cat.Title = node.Name
		if node.Title != nil {
			cat.Title = *node.Title
		}
	}
	return cat
}

// sourceLocation is the feed's own timezone, else its group's.
// Category timezones never reach here and the global one is display-only.
func sourceLocation(label string, f, g *Node) (*time.Location, error) {
	if loc, err := location(label, f.Options); loc != nil || err != nil {
		return loc, err
	}
	if g != nil {
		return location(g.Label(), g.Options)
	}
	return nil, nil
}

// location returns the node's timezone; timezone wins over tzoffset
func location(label string, o domain.Options) (*time.Location, error) {
	if o.Timezone != nil {
		loc, err := time.LoadLocation(*o.Timezone)
		if err != nil {
			return nil, &coreerrors.ConfigError{Node: label, Key: "timezone", Message: err.Error()}
		}
		return loc, nil
	}
	if o.TZOffset != nil {
		seconds := int(*o.TZOffset * 3600)
		return time.FixedZone(fmt.Sprintf("UTC%+g", *o.TZOffset), seconds), nil
	}
	return nil, nil
}

// ruleLayers lists rule maps from lowest to highest precedence
func ruleLayers(get func(*Node) map[string]domain.RuleSpec, nodes ...*Node) []map[string]domain.RuleSpec {
	var layers []map[string]domain.RuleSpec
	for _, n := range nodes {
		if n != nil {
			if rules := get(n); len(rules) > 0 {
				layers = append(layers, rules)
			}
		}
	}
	return layers
}

// compileRules merges rule layers by name, later layers replacing earlier
// rules of the same name, and compiles the survivors
func compileRules(label, kind string, layers []map[string]domain.RuleSpec) (domain.RuleSet, error) {
	merged := make(map[string]domain.RuleSpec)
	for _, layer := range layers {
		for name, spec := range layer {
			merged[name] = spec
		}
	}
	if len(merged) == 0 {
		return nil, nil
	}

	set := make(domain.RuleSet, len(merged))
	for name, spec := range merged {
		re, err := regexp.Compile(spec.Find)
		if err != nil {
			return nil, &coreerrors.RuleError{Node: label, Rule: kind + "." + name, Pattern: spec.Find, Err: err}
		}
		set[name] = domain.Rule{Name: name, Source: spec.Source, Find: spec.Find, Pattern: re}
	}
	return set, nil
}

func compileDigest(label string, cfg *domain.DigestConfig) (*domain.DigestSpec, error) {
	interval, err := domain.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, &coreerrors.ConfigError{Node: label, Key: "digest.interval", Message: err.Error()}
	}

	spec := &domain.DigestSpec{
		Interval: interval,
		IDSource: cfg.IDSource,
		IDFind:   cfg.IDFind,
		Link:     cfg.Link,
		Title:    cfg.Title,
		Partial:  cfg.Partial,
	}
	if cfg.IDFind != "" {
		re, err := regexp.Compile(cfg.IDFind)
		if err != nil {
			return nil, &coreerrors.RuleError{Node: label, Rule: "digest.id_find", Pattern: cfg.IDFind, Err: err}
		}
		spec.IDPattern = re
	}
	return spec, nil
}
