// ABOUTME: HTML utilities for extracting plain text from entry markup
// ABOUTME: Used to expose a tag-free "text" field to ignore and strip rules

package html

import (
	stdhtml "html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
// Script and style content is dropped.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(stdhtml.UnescapeString(fragment))
	}
	doc.Find("script, style, noscript").Remove()

	// block elements would otherwise glue neighbouring words together
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return collapse(doc.Text())
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
