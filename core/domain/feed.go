// ABOUTME: Feed domain model represents a cached feed snapshot with its fetch provenance
// ABOUTME: Provides URL canonicalization so cache and config lookups agree on feed identity

package domain

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// HealthStatus describes the last known state of a feed URL
type HealthStatus string

const (
	// HealthOK means the last fetch succeeded or was confirmed not modified
	HealthOK HealthStatus = "ok"

	// HealthRedirected means the feed permanently moved to Health.Location
	HealthRedirected HealthStatus = "redirected"

	// HealthGone means the server reported the feed as permanently removed
	HealthGone HealthStatus = "gone"
)

// Health records the URL health of a feed
type Health struct {
	Status   HealthStatus `json:"status"`
	Location string       `json:"location,omitempty"`
}

// Snapshot is the cached state of one feed between runs
type Snapshot struct {
	// URL is the canonical feed URL the snapshot was stored under
	URL string `json:"url"`

	// Title and Link are the feed-level title and site link reported by the parser
	Title string `json:"title,omitempty"`
	Link  string `json:"link,omitempty"`

	// ETag and LastModified are the HTTP validators from the last 200 response
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`

	// FetchedAt is the time of the last successful or not-modified fetch
	FetchedAt time.Time `json:"fetched_at"`

	Health Health `json:"health"`

	// Entries are the parsed entries of the last 200 response, in parser order
	Entries []RawEntry `json:"entries"`
}

// HasValidators reports whether a conditional request can be made
func (s *Snapshot) HasValidators() bool {
	return s != nil && (s.ETag != "" || s.LastModified != "")
}

// Validate checks the snapshot is usable
func (s *Snapshot) Validate() error {
	if s.URL == "" {
		return errors.New("snapshot URL cannot be empty")
	}
	if s.FetchedAt.IsZero() {
		return errors.New("snapshot fetch time cannot be zero")
	}
	return nil
}

// CanonicalURL normalizes a feed URL into its identity form.
// Scheme and host are lower-cased, internationalized hosts are converted to
// ASCII and the fragment is dropped. Path and query are kept verbatim.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("feed URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("feed URL must be absolute")
	}

	host := strings.ToLower(u.Hostname())
	if ip := net.ParseIP(host); ip == nil {
		if host, err = idna.Lookup.ToASCII(host); err != nil {
			return "", err
		}
	} else if ip.To4() == nil {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		host = net.JoinHostPort(strings.Trim(host, "[]"), port)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
