package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	coreerrors "digests-builder/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `# reading list
max_entry_num = 50
timezone = "Europe/Berlin"
category = "Misc"

[strip.tracking]
source = "link"
find = "\\?utm_.*$"

[categories."Tech News"]
title = "Technology"
max_entry_num = 20
timezone = "Asia/Tokyo"

[groups.Comics]
category = "Tech News"
max_entry_age = 30

[[feeds]]
url = "https://Example.com/feed.xml"  # main feed
title = "Example"
category = "Tech News"
max_entry_num = 5

[feeds.ignore.sponsored]
source = "title"
find = "(?i)sponsored"

[[feeds]]
url = "https://comics.example.org/rss"
group = "Comics"
category = "Misc"
sort = true
tzoffset = -5.5

[[feeds]]
url = "https://strips.example.org/atom"
group = "comics"
sort = false
hide = true

[[feeds]]
url = "https://plain.example.net/feed"
`

func parseSample(t *testing.T) *Store {
	t.Helper()
	s, err := Parse([]byte(sampleConfig), nil)
	require.NoError(t, err)
	return s
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Tech News", "tech_news"},
		{"tech_news", "tech_news"},
		{"Comics!", "comics"},
		{"  A-B  ", "__ab__"},
		{"Ünïcode 2", "ncode_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.name))
		})
	}
}

func TestResolve_Precedence(t *testing.T) {
	s := parseSample(t)

	fs, err := s.Resolve("https://example.com/feed.xml")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/feed.xml", fs.URL)
	assert.Equal(t, "Example", fs.Title)
	assert.Equal(t, 5, fs.MaxEntryNum, "feed value wins over category and global")
	assert.Equal(t, "tech_news", fs.Category.Key)
	assert.Equal(t, "Technology", fs.Category.Title)
	assert.Empty(t, fs.Group)

	plain, err := s.Resolve("https://plain.example.net/feed")
	require.NoError(t, err)
	assert.Equal(t, 50, plain.MaxEntryNum, "global value applies when nothing overrides it")
	assert.Equal(t, "misc", plain.Category.Key)
	assert.Equal(t, "Misc", plain.Category.Title, "undeclared category keeps its written name")
	assert.Empty(t, plain.Title)
}

func TestResolve_RulesMergeByName(t *testing.T) {
	s := parseSample(t)

	fs, err := s.Resolve("https://example.com/feed.xml")
	require.NoError(t, err)

	require.Contains(t, fs.Strip, "tracking", "global strip rule is inherited")
	require.Contains(t, fs.Ignore, "sponsored")
	assert.True(t, fs.Ignore["sponsored"].Pattern.MatchString("A Sponsored post"))

	plain, err := s.Resolve("https://plain.example.net/feed")
	require.NoError(t, err)
	assert.Contains(t, plain.Strip, "tracking")
	assert.Empty(t, plain.Ignore)
}

func TestResolve_Timezones(t *testing.T) {
	s := parseSample(t)

	fs, err := s.Resolve("https://example.com/feed.xml")
	require.NoError(t, err)
	assert.Nil(t, fs.SourceLocation, "category timezone is not a source timezone")
	require.NotNil(t, fs.DisplayLocation)
	assert.Equal(t, "Europe/Berlin", fs.DisplayLocation.String())

	member, err := s.Resolve("https://comics.example.org/rss")
	require.NoError(t, err)
	require.NotNil(t, member.SourceLocation)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, member.SourceLocation).Zone()
	assert.Equal(t, -5*3600-30*60, offset)
}

func TestResolve_GroupMembers(t *testing.T) {
	s := parseSample(t)

	member, err := s.Resolve("https://comics.example.org/rss")
	require.NoError(t, err)

	assert.Equal(t, "comics", member.Group)
	assert.Equal(t, "tech_news", member.Category.Key, "members use the group category")
	assert.Equal(t, 30, member.MaxEntryAge, "group value reaches members")
	assert.Equal(t, 20, member.MaxEntryNum, "group category sits above global")
	assert.True(t, member.Sort)

	assert.Equal(t, []string{"comics"}, s.Groups())
	assert.Equal(t, []string{
		"https://comics.example.org/rss",
		"https://strips.example.org/atom",
	}, s.GroupMembers("comics"))

	var found bool
	for _, w := range s.Warnings() {
		if w.Key == "category" && strings.Contains(w.Node, "comics.example.org") {
			found = true
		}
	}
	assert.True(t, found, "member category should be reported")
}

func TestResolveGroup(t *testing.T) {
	s := parseSample(t)

	g, err := s.ResolveGroup("comics")
	require.NoError(t, err)

	assert.Equal(t, "Comics", g.Title)
	assert.Equal(t, "comics", g.Group)
	assert.Equal(t, 30, g.MaxEntryAge)
	assert.True(t, g.Sort, "first member setting sort wins")
	assert.True(t, g.Hide, "a key set by one member only is taken")
	assert.Equal(t, 20, g.MaxEntryNum)

	_, err = s.ResolveGroup("missing")
	assert.True(t, coreerrors.IsConfig(err))
}

func TestResolve_PlacementErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		key    string
	}{
		{
			name:   "url on category",
			config: "[categories.a]\nurl = \"https://x.example/\"\n[[feeds]]\nurl = \"https://f.example/\"\ncategory = \"a\"\n",
			key:    "url",
		},
		{
			name:   "title at global level",
			config: "title = \"All\"\n[[feeds]]\nurl = \"https://f.example/\"\n",
			key:    "title",
		},
		{
			name:   "category on category",
			config: "[categories.a]\ncategory = \"b\"\n[[feeds]]\nurl = \"https://f.example/\"\ncategory = \"a\"\n",
			key:    "category",
		},
		{
			name:   "negative count",
			config: "[[feeds]]\nurl = \"https://f.example/\"\nmax_entry_num = -1\n",
			key:    "max_entry_num",
		},
		{
			name:   "wrong type",
			config: "[[feeds]]\nurl = \"https://f.example/\"\nsort = \"yes\"\n",
			key:    "sort",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.config), nil)
			require.NoError(t, err)

			_, err = s.Resolve("https://f.example/")
			require.Error(t, err)
			assert.True(t, coreerrors.IsConfig(err))
			assert.Contains(t, err.Error(), "'"+tt.key+"'")
		})
	}
}

func TestResolve_InvalidPattern(t *testing.T) {
	config := "[[feeds]]\nurl = \"https://f.example/\"\n[feeds.ignore.bad]\nsource = \"title\"\nfind = \"(\"\n"
	s, err := Parse([]byte(config), nil)
	require.NoError(t, err)

	_, err = s.Resolve("https://f.example/")
	require.Error(t, err)
	assert.True(t, coreerrors.IsRule(err))
}

func TestResolve_CategoryTimezoneIgnored(t *testing.T) {
	s := parseSample(t)
	assert.Nil(t, s.categories["tech_news"].Options.Timezone)
}

func TestResolve_DigestSkipsGroup(t *testing.T) {
	config := `
[digest]
interval = "week"

[groups.g.digest]
interval = "month"

[[feeds]]
url = "https://a.example/"
group = "g"
`
	s, err := Parse([]byte(config), nil)
	require.NoError(t, err)

	member, err := s.Resolve("https://a.example/")
	require.NoError(t, err)
	require.NotNil(t, member.Digest)
	assert.Equal(t, "week", string(member.Digest.Interval))

	g, err := s.ResolveGroup("g")
	require.NoError(t, err)
	require.NotNil(t, g.Digest)
	assert.Equal(t, "month", string(g.Digest.Interval))
}

func TestParse_SkipsDuplicatesAndMissingURL(t *testing.T) {
	config := `
[[feeds]]
url = "https://a.example/feed"

[[feeds]]
title = "no url"

[[feeds]]
url = "HTTPS://A.EXAMPLE/feed"
`
	s, err := Parse([]byte(config), nil)
	require.NoError(t, err)

	feeds := s.Feeds()
	require.Len(t, feeds, 1)
	assert.Equal(t, "https://a.example/feed", feeds[0].URL)
	assert.Len(t, s.Warnings(), 2)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte("[[feeds]\nurl = "), nil)
	assert.Error(t, err)
}

func TestResolve_UnknownFeed(t *testing.T) {
	s := parseSample(t)
	_, err := s.Resolve("https://unknown.example/")
	assert.True(t, coreerrors.IsConfig(err))
}

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestSave_RedirectRewritesURL(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	s, err := Load(path, nil)
	require.NoError(t, err)

	applied := s.Apply([]Mutation{Redirect("https://Example.com/feed.xml#top", "https://example.com/new.xml")})
	require.Len(t, applied, 1)
	assert.Equal(t, "https://example.com/feed.xml", applied[0].URL)
	assert.Equal(t, "https://example.com/new.xml", applied[0].NewURL)
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `url = "https://example.com/new.xml"  # main feed`)
	assert.NotContains(t, text, "https://Example.com/feed.xml")
	assert.Contains(t, text, "# reading list", "comments survive")

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	fs, err := reloaded.Resolve("https://example.com/new.xml")
	require.NoError(t, err)
	assert.Equal(t, "Example", fs.Title)
	assert.Contains(t, fs.Ignore, "sponsored", "sub-tables stay attached to the feed")
}

func TestSave_DisableInsertsKey(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	s, err := Load(path, nil)
	require.NoError(t, err)

	s.Apply([]Mutation{Disable("https://plain.example.net/feed")})
	require.NoError(t, s.Save())

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	for _, f := range reloaded.Feeds() {
		assert.Equal(t, f.URL == "https://plain.example.net/feed", f.Disabled, f.URL)
	}
}

func TestSave_DisableReplacesExistingKey(t *testing.T) {
	path := writeConfig(t, "[[feeds]]\nurl = \"https://a.example/\"\ndisabled = false # keep\n")
	s, err := Load(path, nil)
	require.NoError(t, err)

	s.Apply([]Mutation{Disable("https://a.example/")})
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[[feeds]]\nurl = \"https://a.example/\"\ndisabled = true # keep\n", string(data))
}

func TestSave_RedirectAfterMultiLineArray(t *testing.T) {
	text := "[[feeds]]\n" +
		"tags = [\n" +
		"  [\"a\", \"]\"],\n" +
		"  [\"b\"]\n" +
		"]\n" +
		"url = \"https://a.example/feed\" # after the array\n" +
		"\n" +
		"[[feeds]]\n" +
		"url = \"https://b.example/feed\"\n"
	path := writeConfig(t, text)
	s, err := Load(path, nil)
	require.NoError(t, err)

	require.Len(t, s.Apply([]Mutation{
		Redirect("https://a.example/feed", "https://a.example/moved"),
		Disable("https://b.example/feed"),
	}), 2)
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `url = "https://a.example/moved" # after the array`)
	assert.Contains(t, string(data), "  [\"b\"]\n]\n")

	reloaded, err := Load(path, nil)
	require.NoError(t, err)
	refs := reloaded.Feeds()
	require.Len(t, refs, 2)
	assert.Equal(t, "https://a.example/moved", refs[0].URL)
	assert.False(t, refs[0].Disabled)
	assert.True(t, refs[1].Disabled)
}

func TestBracketDelta(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{`tags = [`, 1},
		{`  ["a"],`, 0},
		{`]`, -1},
		{`name = "[not an array"`, 0},
		{`x = 'literal [' # [[ comment`, 0},
		{`y = "esc \" [" ]`, -1},
	}
	for _, tt := range tests {
		if got := bracketDelta(tt.line); got != tt.want {
			t.Errorf("bracketDelta(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestApply_SkipsUnknownAndTakenTargets(t *testing.T) {
	s := parseSample(t)

	applied := s.Apply([]Mutation{
		Redirect("https://unknown.example/", "https://elsewhere.example/"),
		Redirect("https://example.com/feed.xml", "https://plain.example.net/feed"),
	})
	assert.Empty(t, applied)
	assert.Empty(t, s.Pending())
}

func TestSave_NoPendingLeavesFileAlone(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	s, err := Load(path, nil)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, s.Save())

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, `"https://a.example/?q=\"x\""`, quoteString(`https://a.example/?q="x"`))
	assert.Equal(t, `"a\\b"`, quoteString(`a\b`))
}
