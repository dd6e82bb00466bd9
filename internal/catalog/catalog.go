// Package catalog holds the normalized data model the scraping engine
// produces and the ingestion pipeline persists: Manga, Chapter, and the
// transient SearchResult.
package catalog

import (
	"strings"
	"time"
)

// ongoingBlacklist is the closed, deliberately incomplete set of status
// words that mark a manga as finished. It does not cover "hiatus" or
// "cancelled" — a known open item, not a bug to silently fix (see
// DESIGN.md).
var ongoingBlacklist = map[string]struct{}{
	"completed": {},
	"dropped":   {},
	"finished":  {},
	"stopped":   {},
	"done":      {},
}

// Ongoing derives the ongoing flag from a site's free-text status string.
func Ongoing(status string) bool {
	_, blacklisted := ongoingBlacklist[strings.ToLower(status)]
	return !blacklisted
}

// Manga is the catalog entity: identity is its canonical URL.
type Manga struct {
	ID          int64
	URL         string
	Title       string
	Description string
	CoverURL    string
	Ongoing     bool
	AltTitles   []string
	Authors     []string
	Genres      []string
	Chapters    []Chapter
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chapter is one installment of a Manga, identified by (manga, URL).
type Chapter struct {
	ID     int64
	URL    string
	Title  string
	Number float64
	Posted *time.Time
}

// SearchResult is a transient hit returned by a site's search endpoint; it
// is never persisted by the core.
type SearchResult struct {
	URL      string
	Title    string
	Posted   *time.Time
	CoverURL string
}
