// ABOUTME: Media rewriting for display content
// ABOUTME: Defers image loading and asks resizable image hosts for a bounded width

package transform

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// rewriteMedia marks images for deferred loading and, when maxWidth is
// positive, rewrites recognized resizable image URLs to that width
func rewriteMedia(content string, maxWidth int) string {
	if !strings.Contains(strings.ToLower(content), "<img") {
		return content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		s.SetAttr("loading", "lazy")
		if maxWidth <= 0 {
			return
		}
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		if resized, ok := resizeURL(src, maxWidth); ok {
			s.SetAttr("src", resized)
			s.RemoveAttr("srcset")
			s.RemoveAttr("sizes")
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return content
	}
	return out
}

// cloudinaryWidth matches a w_N transformation inside a path segment
var cloudinaryWidth = regexp.MustCompile(`([/,])w_\d+([,/])`)

// resizeURL rewrites the width of a resizable image URL.
// Recognized forms are the w and width query parameters, resize=W,H and
// Cloudinary-style /w_N/ path transformations.
func resizeURL(src string, width int) (string, bool) {
	u, err := url.Parse(src)
	if err != nil {
		return src, false
	}
	w := strconv.Itoa(width)

	if cloudinaryWidth.MatchString(u.Path) {
		u.Path = cloudinaryWidth.ReplaceAllString(u.Path, "${1}w_"+w+"${2}")
		u.RawPath = ""
		return u.String(), true
	}

	q := u.Query()
	changed := false
	for _, key := range []string{"w", "width"} {
		if v := q.Get(key); v != "" {
			if _, err := strconv.Atoi(v); err == nil {
				q.Set(key, w)
				changed = true
			}
		}
	}
	if v := q.Get("resize"); v != "" {
		if resized, ok := scaleResize(v, width); ok {
			q.Set("resize", resized)
			changed = true
		}
	}
	if !changed {
		return src, false
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}

// scaleResize scales a "W,H" pair to width keeping the aspect ratio
func scaleResize(v string, width int) (string, bool) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return "", false
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 {
		return "", false
	}
	return strconv.Itoa(width) + "," + strconv.Itoa(h*width/w), true
}
