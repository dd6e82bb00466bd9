// Package selector wraps goquery with the comma-as-fallback semantics the
// scraping engine depends on: "a, b" means "try a, and only if a matches
// nothing, try b" — not the CSS union goquery.Selection.Find gives you by
// default. Every call site in this module goes through this package rather
// than calling Find directly.
package selector

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var fallbackSplitter = regexp.MustCompile(`,\s*`)

// DefaultAttrPriority is the attribute lookup order absoluteURL falls back
// to when a plugin does not specify its own.
var DefaultAttrPriority = []string{"href", "src", "data-src"}

// listSplitter matches the punctuation/whitespace class collect() splits a
// single matched element's text on.
var listSplitter = regexp.MustCompile(`[\s\n\r\t:;\-]+`)

// Select returns the result of the first comma-separated sub-selector that
// matches anything under root, or an empty selection if none do.
func Select(root *goquery.Selection, query string) *goquery.Selection {
	parts := fallbackSplitter.Split(strings.TrimSpace(query), -1)
	var last *goquery.Selection
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found := root.Find(part)
		last = found
		if found.Length() > 0 {
			return found
		}
	}
	if last == nil {
		return root.Find(query)
	}
	return last
}

// First returns the first element of Select's result, or nil if nothing
// matched.
func First(root *goquery.Selection, query string) *goquery.Selection {
	found := Select(root, query)
	if found.Length() == 0 {
		return nil
	}
	single := found.First()
	return single
}

// TextOrAttr returns the named attribute if present (trimmed), falling back
// to the element's trimmed text. An empty attr name always returns text.
func TextOrAttr(sel *goquery.Selection, attr string) string {
	if sel == nil {
		return ""
	}
	if attr != "" {
		if value, ok := sel.Attr(attr); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return strings.TrimSpace(sel.Text())
}

// FirstAttr returns the first populated attribute from priority, or "" plus
// false if none are set.
func FirstAttr(sel *goquery.Selection, priority []string) (string, bool) {
	if sel == nil {
		return "", false
	}
	for _, attr := range priority {
		if value, ok := sel.Attr(attr); ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed, true
			}
		}
	}
	return "", false
}

// CollectList implements the "collect list" helper: when multiple elements
// match, split each element's text on newlines; when exactly one element
// matches, split its text on the whitespace/punctuation class instead.
// Empty fragments are dropped either way.
func CollectList(root *goquery.Selection, query string) []string {
	found := Select(root, query)
	if found.Length() == 0 {
		return nil
	}

	if found.Length() == 1 {
		text := strings.TrimSpace(found.First().Text())
		return splitNonEmpty(listSplitter, text)
	}

	result := make([]string, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		for _, line := range strings.Split(s.Text(), "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
	})
	return result
}

func splitNonEmpty(re *regexp.Regexp, text string) []string {
	parts := re.Split(text, -1)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// AbsoluteURL resolves the first attribute in priority present on sel into
// an absolute URL against base. A relative reference is resolved with the
// base's path reset to "/" first, matching sites that serve relative hrefs
// off the domain root rather than the current page's path.
func AbsoluteURL(base *url.URL, sel *goquery.Selection, priority []string) (string, bool) {
	if len(priority) == 0 {
		priority = DefaultAttrPriority
	}
	raw, ok := FirstAttr(sel, priority)
	if !ok {
		return "", false
	}
	return ResolveURL(base, raw)
}

// ResolveURL resolves raw against base the way AbsoluteURL does, for
// callers that already have the raw attribute value in hand (e.g. AJAX
// overrides building URLs from a scraped id rather than a selector match).
func ResolveURL(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if parsed.IsAbs() {
		return parsed.String(), true
	}

	rootBase := *base
	rootBase.Path = "/"
	rootBase.RawQuery = ""
	rootBase.Fragment = ""
	resolved := rootBase.ResolveReference(parsed)
	return resolved.String(), true
}

// LastInteger scans text for every run of digits and returns the last one
// parsed as a float, matching the chapter-number extraction rule (the
// *last* number in the text wins, not the first).
func LastInteger(text string) (float64, bool) {
	matches := digitRunPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	value, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

var digitRunPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
