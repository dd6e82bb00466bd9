// Package genericparser implements the Generic Parser (§4.E): the engine
// that drives the Fetcher, Selector Engine, and Date Parser over a
// declarative Query to produce a normalized Manga/Chapter/Image list.
//
// A Parser is used directly by declarative plugins, or embedded by
// structural/override plugins that replace one or two hooks (AJAX chapter
// lists, AJAX image endpoints, custom search URL building) while keeping
// everything else — delegation, not inheritance, per the design note this
// engine follows.
package genericparser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/arimura/mangawatch/internal/catalog"
	"github.com/arimura/mangawatch/internal/dateparse"
	"github.com/arimura/mangawatch/internal/fetch"
	"github.com/arimura/mangawatch/internal/parseerr"
	"github.com/arimura/mangawatch/internal/query"
	"github.com/arimura/mangawatch/internal/searchutil"
	"github.com/arimura/mangawatch/internal/selector"
)

// Overrides lets a plugin replace individual steps of the generic pipeline
// while reusing everything else.
type Overrides struct {
	// ChaptersFromHTML replaces chapter extraction entirely, e.g. to fetch
	// a second AJAX endpoint instead of reading the manga page's own DOM.
	ChaptersFromHTML func(ctx context.Context, p *Parser, loc *Location, mangaTitle string) ([]catalog.Chapter, error)
	// ImagesFromURL replaces image-list extraction, e.g. to call a JSON
	// AJAX endpoint and parse its {html} wrapper.
	ImagesFromURL func(ctx context.Context, p *Parser, pageURL string) ([]string, error)
	// ParseSearchURL replaces search-URL construction, e.g. to force a
	// different host/scheme for a given hostname.
	ParseSearchURL func(p *Parser, hostname, keyword string) (string, error)
}

// Parser is the concrete engine. Plugins compose it by embedding *Parser
// and optionally setting Overrides.
type Parser struct {
	Fetcher   *fetch.Fetcher
	Query     query.Query
	Overrides Overrides
}

// New builds a Parser with a default (null-bypass) Fetcher.
func New(q query.Query) *Parser {
	return &Parser{Fetcher: fetch.New(), Query: q}
}

// Location pairs a parsed document with the final URL it was fetched from,
// mirroring the original engine's DocLoc tuple.
type Location struct {
	Doc *goquery.Document
	URL *url.URL
}

// Accepts checks the hostname against the query's hostname list.
func (p *Parser) Accepts(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return parseerr.NotAccepted(rawURL)
	}
	host := strings.ToLower(parsed.Hostname())
	for _, hostname := range p.Query.Hostnames {
		if strings.ToLower(hostname) == host {
			return nil
		}
	}
	return parseerr.NotAccepted(rawURL)
}

func (p *Parser) fetchDocument(ctx context.Context, rawURL string) (string, *Location, error) {
	result, err := p.Fetcher.Get(ctx, rawURL, "")
	if err != nil {
		return "", nil, err
	}

	doc, err := parseDocument(result.Body)
	if err != nil {
		return "", nil, err
	}

	finalURL := result.FinalURL
	if finalURL == nil {
		finalURL, _ = url.Parse(rawURL)
	}

	return result.Body, &Location{Doc: doc, URL: finalURL}, nil
}

func parseDocument(html string) (doc *goquery.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = parseerr.BadDocument(r)
		}
	}()
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		err = fmt.Errorf("%w: %v", parseerr.ErrBadDocument, err)
	}
	return doc, err
}

// Manga implements the manga(url) operation. A panic anywhere in selector
// evaluation (a malformed CSS selector in a declarative query, for
// instance) is caught here and mapped to ErrBadDocument rather than
// crashing the caller's goroutine.
func (p *Parser) Manga(ctx context.Context, rawURL string) (result catalog.Manga, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = catalog.Manga{}
			err = parseerr.BadDocument(r)
		}
	}()

	if err := p.Accepts(rawURL); err != nil {
		return catalog.Manga{}, err
	}

	html, loc, err := p.fetchDocument(ctx, rawURL)
	if err != nil {
		return catalog.Manga{}, err
	}

	title, err := p.title(loc)
	if err != nil {
		return catalog.Manga{}, err
	}

	manga := catalog.Manga{
		URL:         loc.URL.String(),
		Title:       title,
		Description: p.description(loc),
		CoverURL:    p.cover(loc),
		Ongoing:     p.ongoing(loc),
		Genres:      p.genres(loc),
		Authors:     p.authors(loc),
		AltTitles:   p.altTitles(loc, html),
	}

	chapters, err := p.Chapters(ctx, html, loc, manga.Title)
	if err != nil {
		return catalog.Manga{}, err
	}
	manga.Chapters = chapters

	return manga, nil
}

// Chapters implements the chapters(html, final-url, manga-title) operation,
// delegating to an override if the plugin set one.
func (p *Parser) Chapters(ctx context.Context, html string, loc *Location, mangaTitle string) ([]catalog.Chapter, error) {
	if p.Overrides.ChaptersFromHTML != nil {
		return p.Overrides.ChaptersFromHTML(ctx, p, loc, mangaTitle)
	}
	return p.chaptersFromDoc(loc, mangaTitle)
}

var suffixPatternCache = map[string]*regexp.Regexp{}

func titleSuffixPattern(mangaTitle string) *regexp.Regexp {
	if mangaTitle == "" {
		return regexp.MustCompile(`$^`)
	}
	if cached, ok := suffixPatternCache[mangaTitle]; ok {
		return cached
	}
	pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(mangaTitle) + `\s*$`)
	suffixPatternCache[mangaTitle] = pattern
	return pattern
}

// ChaptersFromDoc runs the default chapter extraction against an
// already-fetched document; exported so override plugins that fetch their
// own AJAX HTML can still reuse the generic row-extraction logic.
func (p *Parser) ChaptersFromDoc(loc *Location, mangaTitle string) ([]catalog.Chapter, error) {
	return p.chaptersFromDoc(loc, mangaTitle)
}

func (p *Parser) chaptersFromDoc(loc *Location, mangaTitle string) ([]catalog.Chapter, error) {
	cq := p.Query.Manga.Chapter
	hrefAttrs := query.MergeAttrs(cq.HrefAttr, selector.DefaultAttrPriority)

	elements := selector.Select(loc.Doc.Selection, cq.Base)
	count := elements.Length()
	chapters := make([]catalog.Chapter, 0, count)
	suffix := titleSuffixPattern(mangaTitle)

	var rowErr error
	elements.EachWithBreak(func(i int, el *goquery.Selection) bool {
		href := selector.First(el, cq.Href)
		if href == nil {
			rowErr = fmt.Errorf("chapter %d: %w", i, parseerr.ErrInvalidChapterURL)
			return false
		}

		absURL, ok := selector.AbsoluteURL(loc.URL, href, hrefAttrs)
		if !ok {
			rowErr = parseerr.InvalidChapterURL(strings.TrimSpace(el.Text()))
			return false
		}

		titleElement := href
		if cq.Title != "" && cq.Title != cq.Href {
			if found := selector.First(el, cq.Title); found != nil {
				titleElement = found
			}
		}
		title := selector.TextOrAttr(titleElement, cq.TitleAttr)
		title = strings.TrimSpace(suffix.ReplaceAllString(title, ""))

		numberElement := titleElement
		if cq.Number != "" {
			if found := selector.First(el, cq.Number); found != nil {
				numberElement = found
			}
		}
		numberText := selector.TextOrAttr(numberElement, cq.NumberAttr)
		number, ok := selector.LastInteger(numberText)
		if !ok {
			// Reverse-index fallback: first row gets the highest number so
			// chapters stay monotonically ordered even without digits.
			number = float64(count - i)
		}

		chapters = append(chapters, catalog.Chapter{
			URL:    absURL,
			Title:  title,
			Number: number,
			Posted: p.postedFor(el, cq),
		})
		return true
	})

	if rowErr != nil {
		return nil, rowErr
	}

	return chapters, nil
}

func (p *Parser) postedFor(el *goquery.Selection, cq query.Chapter) *time.Time {
	if cq.Posted == "" {
		return nil
	}
	found := selector.First(el, cq.Posted)
	if found == nil {
		return nil
	}
	raw := selector.TextOrAttr(found, cq.PostedAttr)
	parsed, ok := dateparse.Parse(raw)
	if !ok {
		return nil
	}
	return &parsed
}

// Images implements the images(url) operation. Like Manga, a panic during
// selector evaluation is caught and mapped to ErrBadDocument.
func (p *Parser) Images(ctx context.Context, pageURL string) (images []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			images = nil
			err = parseerr.BadDocument(r)
		}
	}()

	if p.Overrides.ImagesFromURL != nil {
		return p.Overrides.ImagesFromURL(ctx, p, pageURL)
	}

	_, loc, err := p.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return p.imagesFromDoc(loc)
}

// ImagesFromDoc runs the default image extraction against an
// already-fetched document; exported for AJAX-image override plugins that
// parse a JSON {html} wrapper into a document of their own.
func (p *Parser) ImagesFromDoc(loc *Location) ([]string, error) {
	return p.imagesFromDoc(loc)
}

func (p *Parser) imagesFromDoc(loc *Location) ([]string, error) {
	iq := p.Query.Images
	attrs := query.MergeAttrs(iq.ImageAttrs, []string{"src", "data-src"})

	elements := selector.Select(loc.Doc.Selection, iq.Image)
	if elements.Length() == 0 {
		return nil, parseerr.ErrMissingImages
	}

	images := make([]string, 0, elements.Length())
	elements.Each(func(_ int, el *goquery.Selection) {
		if absURL, ok := selector.AbsoluteURL(loc.URL, el, attrs); ok {
			images = append(images, absURL)
		}
	})

	if len(images) == 0 {
		return nil, parseerr.ErrMissingImages
	}
	return images, nil
}

// ParseKeywords percent-encodes keywords iff the search section requests
// it, matching parse_keywords.
func (p *Parser) ParseKeywords(keywords string) string {
	if p.Query.Search != nil && p.Query.Search.Encode {
		return url.QueryEscape(keywords)
	}
	return keywords
}

// ParseSearchURL substitutes [query] into the search path template and
// builds an absolute URL against hostname, matching parse_search_url.
func (p *Parser) ParseSearchURL(hostname, keywords string) (string, error) {
	if p.Overrides.ParseSearchURL != nil {
		return p.Overrides.ParseSearchURL(p, hostname, keywords)
	}
	if p.Query.Search == nil {
		return "", fmt.Errorf("parser has no search section")
	}
	path := strings.TrimPrefix(p.Query.Search.PathTemplate, "/")
	path = strings.ReplaceAll(path, "[query]", p.ParseKeywords(keywords))
	return fmt.Sprintf("https://%s/%s", hostname, path), nil
}

// Search implements the search(keyword, hostnames) operation. Like Manga
// and Images, a panic during selector evaluation on any one hostname's
// result page is caught and mapped to ErrBadDocument rather than taking
// down the whole search fan-out.
func (p *Parser) Search(ctx context.Context, keyword string, hostnames []string) (results []catalog.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = parseerr.BadDocument(r)
		}
	}()

	sq := p.Query.Search
	if sq == nil {
		return nil, fmt.Errorf("parser does not support search")
	}

	searchable := p.searchableHostnames()
	if len(searchable) == 0 {
		return nil, fmt.Errorf("no searchable hostnames configured")
	}

	for _, hostname := range hostnames {
		if !contains(searchable, hostname) {
			continue
		}

		searchURL, err := p.ParseSearchURL(hostname, keyword)
		if err != nil {
			slog.Warn("search url build failed", "hostname", hostname, "error", err)
			continue
		}

		_, loc, err := p.fetchDocument(ctx, searchURL)
		if err != nil {
			slog.Warn("search fetch failed", "hostname", hostname, "error", err)
			continue
		}

		hits, err := p.searchResultsFromDoc(loc, sq)
		if err != nil {
			slog.Warn("search results extraction failed", "hostname", hostname, "error", err)
			continue
		}
		results = append(results, hits...)
	}

	return results, nil
}

func (p *Parser) searchResultsFromDoc(loc *Location, sq *query.Search) ([]catalog.SearchResult, error) {
	hrefAttrs := query.MergeAttrs(sq.HrefAttr, selector.DefaultAttrPriority)
	coverAttrs := query.MergeAttrs(sq.CoverAttrs, []string{"src", "data-src"})

	elements := selector.Select(loc.Doc.Selection, sq.Base)
	results := make([]catalog.SearchResult, 0, elements.Length())

	elements.Each(func(_ int, el *goquery.Selection) {
		href := selector.First(el, sq.Href)
		if href == nil {
			return
		}
		absURL, ok := selector.AbsoluteURL(loc.URL, href, hrefAttrs)
		if !ok {
			return
		}

		titleElement := href
		if sq.Title != "" && sq.Title != sq.Href {
			if found := selector.First(el, sq.Title); found != nil {
				titleElement = found
			}
		}
		title := selector.TextOrAttr(titleElement, sq.TitleAttr)
		if title == "" {
			return
		}

		result := catalog.SearchResult{URL: absURL, Title: title}

		if sq.Posted != "" {
			if found := selector.First(el, sq.Posted); found != nil {
				raw := selector.TextOrAttr(found, sq.PostedAttr)
				if parsed, ok := dateparse.Parse(raw); ok {
					result.Posted = &parsed
				}
			}
		}
		if sq.Cover != "" {
			if found := selector.First(el, sq.Cover); found != nil {
				if coverURL, ok := selector.AbsoluteURL(loc.URL, found, coverAttrs); ok {
					result.CoverURL = coverURL
				}
			}
		}

		results = append(results, result)
	})

	return results, nil
}

func (p *Parser) searchableHostnames() []string {
	if p.Query.Search != nil && len(p.Query.Search.Hostnames) > 0 {
		return p.Query.Search.Hostnames
	}
	return p.Query.Hostnames
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if strings.EqualFold(v, needle) {
			return true
		}
	}
	return false
}

func (p *Parser) title(loc *Location) (string, error) {
	mq := p.Query.Manga
	found := selector.First(loc.Doc.Selection, mq.Title)
	if found == nil {
		return "", parseerr.ErrMissingTitle
	}
	title := selector.TextOrAttr(found, mq.TitleAttr)
	if title == "" {
		return "", parseerr.ErrMissingTitle
	}
	return title, nil
}

func (p *Parser) description(loc *Location) string {
	mq := p.Query.Manga
	if mq.Description == "" {
		return "No description"
	}
	found := selector.First(loc.Doc.Selection, mq.Description)
	if found == nil {
		return "No description"
	}
	text := selector.TextOrAttr(found, mq.DescriptionAttr)
	if text == "" {
		return "No description"
	}
	return text
}

func (p *Parser) cover(loc *Location) string {
	mq := p.Query.Manga
	if mq.Cover == "" {
		return ""
	}
	found := selector.First(loc.Doc.Selection, mq.Cover)
	if found == nil {
		return ""
	}
	attrs := query.MergeAttrs(mq.CoverAttrs, []string{"src", "data-src"})
	coverURL, ok := selector.AbsoluteURL(loc.URL, found, attrs)
	if !ok {
		return ""
	}
	return coverURL
}

func (p *Parser) ongoing(loc *Location) bool {
	mq := p.Query.Manga
	if mq.IsOngoing == "" {
		return true
	}
	found := selector.First(loc.Doc.Selection, mq.IsOngoing)
	if found == nil {
		return true
	}
	status := selector.TextOrAttr(found, mq.IsOngoingAttr)
	if status == "" {
		return true
	}
	return catalog.Ongoing(status)
}

func (p *Parser) genres(loc *Location) []string {
	mq := p.Query.Manga
	if mq.Genres == "" {
		return nil
	}
	return selector.CollectList(loc.Doc.Selection, mq.Genres)
}

// altTitles reads alt titles from a dedicated selector when the site's
// query configures one. Many sites instead bury alt titles as free text
// inside the description block or a JSON blob embedded in the page
// ("Alternative Names: ..."), with no selectable element of their own; for
// those, fall back to scanning the raw page source with
// searchutil.ExtractRelatedTitles, the same heuristic the donor used for
// the same problem.
func (p *Parser) altTitles(loc *Location, rawHTML string) []string {
	mq := p.Query.Manga
	if mq.AltTitles != "" {
		return selector.CollectList(loc.Doc.Selection, mq.AltTitles)
	}
	return searchutil.ExtractRelatedTitles(rawHTML)
}

func (p *Parser) authors(loc *Location) []string {
	mq := p.Query.Manga
	if mq.Authors == "" {
		return nil
	}
	return selector.CollectList(loc.Doc.Selection, mq.Authors)
}
