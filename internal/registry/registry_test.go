package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/arimura/mangawatch/internal/catalog"
	"github.com/arimura/mangawatch/internal/parseerr"
	"github.com/arimura/mangawatch/internal/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlugin is a minimal plugins.Plugin stand-in for exercising dispatch,
// search fan-out, and health sweep without hitting the network.
type fakePlugin struct {
	key, name       string
	hostnames       []string
	searchHostnames []string
	manga           catalog.Manga
	searchResults   []catalog.SearchResult
	healthErr       error
	searchErr       error
}

func (p *fakePlugin) Key() string          { return p.key }
func (p *fakePlugin) Name() string         { return p.name }
func (p *fakePlugin) Accepts(string) error { return nil }
func (p *fakePlugin) Manga(context.Context, string) (catalog.Manga, error) {
	return p.manga, nil
}
func (p *fakePlugin) Images(context.Context, string) ([]string, error) { return nil, nil }
func (p *fakePlugin) Search(context.Context, string, []string) ([]catalog.SearchResult, error) {
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return p.searchResults, nil
}
func (p *fakePlugin) Hostnames() []string               { return p.hostnames }
func (p *fakePlugin) SearchableHostnames() []string     { return p.searchHostnames }
func (p *fakePlugin) HealthCheck(context.Context) error { return p.healthErr }

var _ plugins.Plugin = (*fakePlugin)(nil)

func TestMangaDispatchesByHostname(t *testing.T) {
	mangadex := &fakePlugin{key: "mangadex", name: "MangaDex", hostnames: []string{"mangadex.org"}, manga: catalog.Manga{Title: "Solo Leveling"}}
	reg := New([]plugins.Plugin{mangadex})

	manga, err := reg.Manga(context.Background(), "https://mangadex.org/title/abc")
	require.NoError(t, err)
	assert.Equal(t, "Solo Leveling", manga.Title)
}

func TestMangaHonorsSecondLevelDomainCollapse(t *testing.T) {
	site := &fakePlugin{key: "site", name: "Site", hostnames: []string{"example.com"}, manga: catalog.Manga{Title: "Found"}}
	reg := New([]plugins.Plugin{site})

	manga, err := reg.Manga(context.Background(), "https://cdn.assets.example.com/title/abc")
	require.NoError(t, err)
	assert.Equal(t, "Found", manga.Title)
}

func TestMangaReturnsNoParserForUnknownHostname(t *testing.T) {
	reg := New(nil)
	_, err := reg.Manga(context.Background(), "https://unknown.example/title/abc")
	assert.ErrorIs(t, err, parseerr.ErrNoParser)
}

func TestMangaRejectsUnparseableURL(t *testing.T) {
	reg := New(nil)
	_, err := reg.Manga(context.Background(), "://not-a-url")
	assert.ErrorIs(t, err, parseerr.ErrNotAccepted)
}

func TestRegisterAddsPluginAfterConstruction(t *testing.T) {
	reg := New(nil)
	reg.Register(&fakePlugin{key: "late", hostnames: []string{"late.example"}, manga: catalog.Manga{Title: "Late"}})

	manga, err := reg.Manga(context.Background(), "https://late.example/x")
	require.NoError(t, err)
	assert.Equal(t, "Late", manga.Title)
}

func TestSearchFansOutToMatchingHostnamesOnly(t *testing.T) {
	a := &fakePlugin{key: "a", searchHostnames: []string{"a.example"}, searchResults: []catalog.SearchResult{{Title: "From A"}}}
	b := &fakePlugin{key: "b", searchHostnames: []string{"b.example"}, searchResults: []catalog.SearchResult{{Title: "From B"}}}
	reg := New([]plugins.Plugin{a, b})

	results := reg.Search(context.Background(), "query", []string{"a.example"})
	require.Len(t, results, 1)
	assert.Equal(t, "From A", results[0].Title)
}

func TestSearchDropsFailingPlugins(t *testing.T) {
	ok := &fakePlugin{key: "ok", searchHostnames: []string{"ok.example"}, searchResults: []catalog.SearchResult{{Title: "OK"}}}
	broken := &fakePlugin{key: "broken", searchHostnames: []string{"broken.example"}, searchErr: errors.New("boom")}
	reg := New([]plugins.Plugin{ok, broken})

	results := reg.Search(context.Background(), "query", []string{"ok.example", "broken.example"})
	require.Len(t, results, 1)
	assert.Equal(t, "OK", results[0].Title)
}

func TestHostnamesAndSearchableHostnamesAreSorted(t *testing.T) {
	b := &fakePlugin{key: "b", hostnames: []string{"b.example"}, searchHostnames: []string{"b.example"}}
	a := &fakePlugin{key: "a", hostnames: []string{"a.example"}, searchHostnames: []string{"a.example"}}
	reg := New([]plugins.Plugin{b, a})

	assert.Equal(t, []string{"a.example", "b.example"}, reg.Hostnames())
	assert.Equal(t, []string{"a.example", "b.example"}, reg.SearchableHostnames())
	assert.True(t, reg.CanSearch())
}

func TestCanSearchFalseWhenNoPluginSearches(t *testing.T) {
	reg := New([]plugins.Plugin{&fakePlugin{key: "a", hostnames: []string{"a.example"}}})
	assert.False(t, reg.CanSearch())
}

func TestHealthReportsPerPluginStatusSortedByKey(t *testing.T) {
	b := &fakePlugin{key: "b", healthErr: errors.New("down")}
	a := &fakePlugin{key: "a"}
	reg := New([]plugins.Plugin{b, a})

	statuses := reg.Health(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, "a", statuses[0].Key)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "b", statuses[1].Key)
	assert.False(t, statuses[1].Healthy)
	assert.Equal(t, "down", statuses[1].Error)
}
