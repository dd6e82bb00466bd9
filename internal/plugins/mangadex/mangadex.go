// Package mangadex implements the one structural site plugin: MangaDex is
// a JSON REST API, not a scraped document, so it bypasses the Selector
// Engine entirely and talks to api.mangadex.org directly.
package mangadex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/arimura/mangawatch/internal/catalog"
	"github.com/arimura/mangawatch/internal/parseerr"
	"github.com/arimura/mangawatch/internal/searchutil"
	"github.com/google/uuid"
)

const (
	chapterPageSize  = 500
	pauseEveryItems  = 2000
	pauseDuration    = time.Second
)

// hostnames is every host this plugin resolves manga/chapter/image URLs
// against. searchableHostnames is the narrower subset the original Rust
// plugin reports for search: the API host resolves manga but was never
// meant to be searched directly, so can_search() omits it.
var (
	hostnames           = []string{"mangadex.org", "api.mangadex.org"}
	searchableHostnames = []string{"mangadex.org"}
)

type Plugin struct {
	apiBaseURL string
	client     *http.Client
}

func New() *Plugin {
	return NewWithOptions("https://api.mangadex.org", &http.Client{Timeout: 10 * time.Second})
}

// NewWithOptions builds a Plugin against a custom API base URL and HTTP
// client, letting tests point it at an httptest server.
func NewWithOptions(apiBaseURL string, client *http.Client) *Plugin {
	return &Plugin{apiBaseURL: apiBaseURL, client: client}
}

func (p *Plugin) Key() string  { return "mangadex" }
func (p *Plugin) Name() string { return "MangaDex" }

func (p *Plugin) Hostnames() []string           { return hostnames }
func (p *Plugin) SearchableHostnames() []string { return searchableHostnames }

// Accepts requires /title/, /manga/, or /chapter/ followed by a parseable
// UUID, matching the original plugin's structural gate.
func (p *Plugin) Accepts(rawURL string) error {
	titleID, _, err := extractUUID(rawURL)
	if err != nil {
		return err
	}
	_ = titleID
	return nil
}

func extractUUID(rawURL string) (uuid.UUID, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return uuid.UUID{}, "", parseerr.NotAccepted(rawURL)
	}

	host := strings.ToLower(parsed.Hostname())
	matched := false
	for _, h := range hostnames {
		if host == h {
			matched = true
			break
		}
	}
	if !matched {
		return uuid.UUID{}, "", parseerr.NotAccepted(rawURL)
	}

	segments := strings.Split(strings.Trim(path.Clean(parsed.Path), "/"), "/")
	if len(segments) < 2 {
		return uuid.UUID{}, "", parseerr.NotAccepted(rawURL)
	}

	kind := segments[0]
	if kind != "title" && kind != "manga" && kind != "chapter" {
		return uuid.UUID{}, "", parseerr.NotAccepted(rawURL)
	}

	id, err := uuid.Parse(segments[1])
	if err != nil {
		return uuid.UUID{}, "", parseerr.NotAccepted(rawURL)
	}

	return id, kind, nil
}

func (p *Plugin) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+"/ping", nil)
	if err != nil {
		return err
	}
	res, err := p.client.Do(req)
	if err != nil {
		return parseerr.Transport(err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return parseerr.Network(res.StatusCode)
	}
	return nil
}

// Manga fetches the manga root and paginates its chapter feed, sleeping
// pauseDuration every pauseEveryItems offset items to respect MangaDex's
// rate limit.
func (p *Plugin) Manga(ctx context.Context, rawURL string) (catalog.Manga, error) {
	titleID, kind, err := extractUUID(rawURL)
	if err != nil {
		return catalog.Manga{}, err
	}
	if kind == "chapter" {
		return catalog.Manga{}, parseerr.NotAccepted(rawURL)
	}

	var payload mangaByIDResponse
	if err := p.getJSON(ctx, p.apiBaseURL+"/manga/"+titleID.String()+"?includes[]=cover_art", &payload); err != nil {
		return catalog.Manga{}, err
	}

	title := pickTitle(payload.Data.Attributes.Title)
	if title == "" {
		return catalog.Manga{}, parseerr.ErrMissingTitle
	}

	manga := catalog.Manga{
		URL:         "https://mangadex.org/title/" + titleID.String(),
		Title:       title,
		Description: pickDescription(payload.Data.Attributes.Description),
		CoverURL:    pickCoverURL(titleID.String(), payload.Data.Relationships),
		Ongoing:     catalog.Ongoing(payload.Data.Attributes.Status),
		AltTitles:   flattenTitles(payload.Data.Attributes.AltTitles),
		Genres:      pickTags(payload.Data.Attributes.Tags),
	}

	chapters, err := p.chapters(ctx, titleID.String())
	if err != nil {
		return catalog.Manga{}, err
	}
	manga.Chapters = chapters

	return manga, nil
}

func (p *Plugin) chapters(ctx context.Context, titleID string) ([]catalog.Chapter, error) {
	var chapters []catalog.Chapter
	offset := 0

	for {
		values := url.Values{}
		values.Set("limit", strconv.Itoa(chapterPageSize))
		values.Set("offset", strconv.Itoa(offset))
		values.Set("order[chapter]", "desc")
		values.Set("includeExternalUrl", "0")
		values.Add("translatedLanguage[]", "en")

		var page mangaFeedResponse
		feedURL := p.apiBaseURL + "/manga/" + titleID + "/feed?" + values.Encode()
		if err := p.getJSON(ctx, feedURL, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Data {
			number, ok := parseChapterNumber(item.Attributes.Chapter)
			if !ok {
				continue
			}
			chapters = append(chapters, catalog.Chapter{
				URL:    "https://mangadex.org/chapter/" + item.ID,
				Title:  strings.TrimSpace(item.Attributes.Title),
				Number: number,
				Posted: parseOptionalTime(item.Attributes.PublishAt, item.Attributes.ReadableAt, item.Attributes.CreatedAt),
			})
		}

		offset += len(page.Data)
		if len(page.Data) < chapterPageSize || offset >= page.Total {
			break
		}
		if offset%pauseEveryItems == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pauseDuration):
			}
		}
	}

	return chapters, nil
}

// Images resolves a chapter page URL to its at-home image list.
func (p *Plugin) Images(ctx context.Context, pageURL string) ([]string, error) {
	chapterID, kind, err := extractUUID(pageURL)
	if err != nil {
		return nil, err
	}
	if kind != "chapter" {
		return nil, parseerr.NotAccepted(pageURL)
	}

	var athome atHomeResponse
	if err := p.getJSON(ctx, p.apiBaseURL+"/at-home/server/"+chapterID.String(), &athome); err != nil {
		return nil, err
	}
	if athome.BaseURL == "" || len(athome.Chapter.Data) == 0 {
		return nil, parseerr.ErrMissingImages
	}

	images := make([]string, 0, len(athome.Chapter.Data))
	for _, fileName := range athome.Chapter.Data {
		images = append(images, fmt.Sprintf("%s/data/%s/%s", athome.BaseURL, athome.Chapter.Hash, fileName))
	}
	return images, nil
}

// Search only runs against hostnames this plugin reports as searchable
// (mangadex.org, never the API host), matching can_search()'s asymmetry.
func (p *Plugin) Search(ctx context.Context, keyword string, requestedHostnames []string) ([]catalog.SearchResult, error) {
	allowed := false
	for _, h := range requestedHostnames {
		if strings.EqualFold(h, "mangadex.org") {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, nil
	}

	values := url.Values{}
	values.Set("title", keyword)
	values.Set("limit", "20")
	values.Add("includes[]", "cover_art")

	var payload mangaSearchResponse
	if err := p.getJSON(ctx, p.apiBaseURL+"/manga?"+values.Encode(), &payload); err != nil {
		return nil, err
	}

	normalizedQuery := searchutil.Normalize(keyword)
	queryTokens := searchutil.TokenizeNormalized(normalizedQuery)

	results := make([]catalog.SearchResult, 0, len(payload.Data))
	for _, item := range payload.Data {
		title := pickTitle(item.Attributes.Title)
		if title == "" {
			continue
		}

		candidates := append([]string{title}, flattenTitles(item.Attributes.AltTitles)...)
		if !searchutil.AnyCandidateMatches(candidates, normalizedQuery, queryTokens) {
			continue
		}

		results = append(results, catalog.SearchResult{
			URL:      "https://mangadex.org/title/" + item.ID,
			Title:    title,
			CoverURL: pickCoverURL(item.ID, item.Relationships),
		})
	}
	return results, nil
}

func (p *Plugin) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return parseerr.Transport(err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return parseerr.Transport(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return parseerr.Network(res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", parseerr.ErrBadDocument, err)
	}
	return nil
}

func pickTitle(titles map[string]string) string {
	for _, lang := range []string{"en", "ja-ro", "ja"} {
		if value := strings.TrimSpace(titles[lang]); value != "" {
			return value
		}
	}
	for _, value := range titles {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func pickDescription(descriptions map[string]string) string {
	if value := strings.TrimSpace(descriptions["en"]); value != "" {
		return value
	}
	for _, value := range descriptions {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return "No description"
}

func flattenTitles(altTitles []map[string]string) []string {
	var out []string
	for _, entry := range altTitles {
		for _, value := range entry {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func pickTags(tags []mangaTag) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if name := strings.TrimSpace(tag.Attributes.Name["en"]); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func pickCoverURL(titleID string, relationships []relationship) string {
	for _, rel := range relationships {
		if rel.Type != "cover_art" {
			continue
		}
		fileName := strings.TrimSpace(rel.Attributes.FileName)
		if fileName == "" {
			continue
		}
		return "https://uploads.mangadex.org/covers/" + titleID + "/" + fileName + ".512.jpg"
	}
	return ""
}

func parseChapterNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func parseOptionalTime(values ...string) *time.Time {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
			utc := parsed.UTC()
			return &utc
		}
	}
	return nil
}

type mangaByIDResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Title       map[string]string   `json:"title"`
			AltTitles   []map[string]string `json:"altTitles"`
			Description map[string]string   `json:"description"`
			Status      string              `json:"status"`
			Tags        []mangaTag          `json:"tags"`
		} `json:"attributes"`
		Relationships []relationship `json:"relationships"`
	} `json:"data"`
}

type mangaSearchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title     map[string]string   `json:"title"`
			AltTitles []map[string]string `json:"altTitles"`
		} `json:"attributes"`
		Relationships []relationship `json:"relationships"`
	} `json:"data"`
}

type mangaTag struct {
	Attributes struct {
		Name map[string]string `json:"name"`
	} `json:"attributes"`
}

type relationship struct {
	Type       string `json:"type"`
	Attributes struct {
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type mangaFeedResponse struct {
	Total int `json:"total"`
	Data  []struct {
		ID         string `json:"id"`
		Attributes struct {
			Chapter    string `json:"chapter"`
			Title      string `json:"title"`
			PublishAt  string `json:"publishAt"`
			ReadableAt string `json:"readableAt"`
			CreatedAt  string `json:"createdAt"`
		} `json:"attributes"`
	} `json:"data"`
}

type atHomeResponse struct {
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash string   `json:"hash"`
		Data []string `json:"data"`
	} `json:"chapter"`
}
