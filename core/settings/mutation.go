// ABOUTME: Persists URL changes discovered while fetching back into the config file
// ABOUTME: Rewrites only the affected lines so comments and layout survive

package settings

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"digests-builder/core/domain"
	"digests-builder/pkg/utils/file"
	"github.com/pelletier/go-toml/v2"
)

// MutationKind is the change a fetch asks the configuration to record
type MutationKind string

const (
	// MutationRedirect replaces a feed URL after a permanent redirect
	MutationRedirect MutationKind = "redirect"
	// MutationDisable marks a feed as gone
	MutationDisable MutationKind = "disable"
)

// Mutation is a pending change to one feed entry of the config file
type Mutation struct {
	Kind   MutationKind
	URL    string
	NewURL string

	// index is the feed's position in the file, set once applied
	index int
}

// Redirect builds a mutation replacing url with newURL
func Redirect(url, newURL string) Mutation {
	return Mutation{Kind: MutationRedirect, URL: url, NewURL: newURL}
}

// Disable builds a mutation disabling url
func Disable(url string) Mutation {
	return Mutation{Kind: MutationDisable, URL: url}
}

// String describes the mutation for logs
func (m Mutation) String() string {
	if m.Kind == MutationRedirect {
		return fmt.Sprintf("redirect %s -> %s", m.URL, m.NewURL)
	}
	return fmt.Sprintf("disable %s", m.URL)
}

// Apply records mutations against the in-memory tree. Mutations for
// unknown feeds, and redirects onto a URL that is already configured,
// are skipped with a warning. It returns the applied mutations with
// canonical URLs.
func (s *Store) Apply(muts []Mutation) []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var applied []Mutation
	for _, m := range muts {
		url, err := domain.CanonicalURL(m.URL)
		if err != nil {
			url = m.URL
		}
		n, ok := s.byURL[url]
		if !ok {
			s.logger.Warn("Mutation for unknown feed skipped", map[string]interface{}{"mutation": m.String()})
			continue
		}

		switch m.Kind {
		case MutationRedirect:
			target, err := domain.CanonicalURL(m.NewURL)
			if err != nil {
				s.logger.Warn("Redirect target is not a valid URL", map[string]interface{}{
					"mutation": m.String(),
					"error":    err.Error(),
				})
				continue
			}
			if target == url {
				continue
			}
			if _, taken := s.byURL[target]; taken {
				s.logger.Warn("Redirect target is already configured, keeping old URL", map[string]interface{}{
					"mutation": m.String(),
				})
				continue
			}
			delete(s.byURL, url)
			n.URL = target
			s.byURL[target] = n
			m = Mutation{Kind: MutationRedirect, URL: url, NewURL: target, index: n.Index}
			s.pending = append(s.pending, m)
		case MutationDisable:
			if n.Disabled {
				continue
			}
			n.Disabled = true
			m = Mutation{Kind: MutationDisable, URL: url, index: n.Index}
			s.pending = append(s.pending, m)
		default:
			s.logger.Warn("Unknown mutation kind skipped", map[string]interface{}{"kind": string(m.Kind)})
			continue
		}
		applied = append(applied, m)
	}
	return applied
}

// Pending returns the mutations applied but not yet saved
func (s *Store) Pending() []Mutation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Mutation(nil), s.pending...)
}

// Raw returns the current configuration text
func (s *Store) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.raw...)
}

// Save writes the pending mutations to the configuration file. The new text
// must parse before it replaces the file, and the replacement is atomic.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	updated, err := s.rewrite()
	if err != nil {
		return err
	}

	var check map[string]interface{}
	if err := toml.Unmarshal(updated, &check); err != nil {
		return fmt.Errorf("rewritten config does not parse: %w", err)
	}

	if s.path != "" {
		if err := file.WriteAtomic(s.path, updated); err != nil {
			return err
		}
	}

	s.logger.Info("Saved configuration changes", map[string]interface{}{
		"path":      s.path,
		"mutations": len(s.pending),
	})
	s.raw = updated
	s.pending = nil
	return nil
}

var (
	feedsHeader   = regexp.MustCompile(`^\s*\[\[\s*feeds\s*\]\]\s*(#.*)?$`)
	tableHeader   = regexp.MustCompile(`^\s*\[\[?[^\[\]=]+\]\]?\s*(#.*)?$`)
	urlLine       = regexp.MustCompile(`^(\s*)url\s*=`)
	disabledLine  = regexp.MustCompile(`^(\s*)disabled\s*=`)
	trailingQuote = regexp.MustCompile(`^(\s*)(url|disabled)\s*=\s*("(?:[^"\\]|\\.)*"|'[^']*'|true|false)(.*)$`)
)

// feedBlock is the line span of one [[feeds]] table before any sub-table
type feedBlock struct {
	start, end int
}

// rewrite applies the pending mutations to the raw text
func (s *Store) rewrite() ([]byte, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(s.raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config text: %w", err)
	}

	blocks := feedBlocks(lines)
	inserts := make(map[int]string)

	for _, m := range s.pending {
		if m.index >= len(blocks) {
			return nil, fmt.Errorf("cannot locate feed %s in config text", m.URL)
		}
		b := blocks[m.index]

		switch m.Kind {
		case MutationRedirect:
			i := findLine(lines, b, urlLine)
			if i < 0 {
				return nil, fmt.Errorf("cannot locate url of feed %s in config text", m.URL)
			}
			lines[i] = replaceValue(lines[i], quoteString(m.NewURL))
		case MutationDisable:
			if i := findLine(lines, b, disabledLine); i >= 0 {
				lines[i] = replaceValue(lines[i], "true")
				continue
			}
			i := findLine(lines, b, urlLine)
			if i < 0 {
				i = b.start
			}
			indent := ""
			if match := urlLine.FindStringSubmatch(lines[i]); match != nil {
				indent = match[1]
			}
			inserts[i] += indent + "disabled = true\n"
		}
	}

	var out strings.Builder
	for i, line := range lines {
		out.WriteString(line)
		out.WriteByte('\n')
		out.WriteString(inserts[i])
	}
	return []byte(out.String()), nil
}

func feedBlocks(lines []string) []feedBlock {
	var blocks []feedBlock
	open := -1
	depth := 0
	for i, line := range lines {
		// continuation lines of a multi-line array are never headers
		if depth > 0 {
			depth = max(depth+bracketDelta(line), 0)
			continue
		}
		if !tableHeader.MatchString(line) {
			depth = max(bracketDelta(line), 0)
			continue
		}
		if open >= 0 {
			blocks = append(blocks, feedBlock{start: open, end: i})
			open = -1
		}
		if feedsHeader.MatchString(line) {
			open = i
		}
	}
	if open >= 0 {
		blocks = append(blocks, feedBlock{start: open, end: len(lines)})
	}
	return blocks
}

// bracketDelta counts the array brackets a line opens minus those it closes,
// ignoring strings and comments
func bracketDelta(line string) int {
	delta := 0
	var quote rune
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			escaped = false
		case quote != 0:
			if r == '\\' && quote == '"' {
				escaped = true
			} else if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return delta
		case r == '[':
			delta++
		case r == ']':
			delta--
		}
	}
	return delta
}

func findLine(lines []string, b feedBlock, re *regexp.Regexp) int {
	for i := b.start + 1; i < b.end; i++ {
		if re.MatchString(lines[i]) {
			return i
		}
	}
	return -1
}

// replaceValue swaps the value of a key line, keeping indentation and any
// trailing comment
func replaceValue(line, value string) string {
	match := trailingQuote.FindStringSubmatch(line)
	if match == nil {
		key := "url"
		if disabledLine.MatchString(line) {
			key = "disabled"
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		return indent + key + " = " + value
	}
	return match[1] + match[2] + " = " + value + match[4]
}

// quoteString renders s as a TOML basic string
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\u%04X`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
