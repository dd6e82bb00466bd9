package plugins

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/arimura/mangawatch/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const declarativeMangaPage = `
<html><body>
  <h1>Solo Leveling</h1>
  <ul class="chapters">
    <li><a href="/manga/solo/c1">Chapter 1</a></li>
  </ul>
</body></html>`

func hostOf(t *testing.T, rawURL string) string {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	return parsed.Hostname()
}

func TestDeclarativeDelegatesToParser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(declarativeMangaPage))
	}))
	defer server.Close()

	q := query.Query{
		Manga: query.Manga{
			Title: "h1",
			Chapter: query.Chapter{
				Base: "ul.chapters li",
				Href: "a",
			},
		},
		Hostnames: []string{hostOf(t, server.URL)},
	}
	d := NewDeclarative("stub-site", "Stub Site", q)

	assert.Equal(t, "stub-site", d.Key())
	assert.Equal(t, "Stub Site", d.Name())
	assert.NoError(t, d.Accepts(server.URL+"/manga/solo"))

	manga, err := d.Manga(context.Background(), server.URL+"/manga/solo")
	require.NoError(t, err)
	assert.Equal(t, "Solo Leveling", manga.Title)
	assert.Len(t, manga.Chapters, 1)
}

func TestDeclarativeSearchableHostnamesFallsBackWhenUnrestricted(t *testing.T) {
	q := query.Query{Hostnames: []string{"a.example", "b.example"}, Search: &query.Search{PathTemplate: "/search?q=[query]"}}
	d := NewDeclarative("k", "n", q)
	assert.ElementsMatch(t, []string{"a.example", "b.example"}, d.SearchableHostnames())
}

func TestDeclarativeSearchableHostnamesHonorsExplicitSubset(t *testing.T) {
	q := query.Query{
		Hostnames: []string{"a.example", "b.example"},
		Search:    &query.Search{PathTemplate: "/search?q=[query]", Hostnames: []string{"a.example"}},
	}
	d := NewDeclarative("k", "n", q)
	assert.Equal(t, []string{"a.example"}, d.SearchableHostnames())
}

func TestDeclarativeSearchableHostnamesNilWhenNoSearch(t *testing.T) {
	q := query.Query{Hostnames: []string{"a.example"}}
	d := NewDeclarative("k", "n", q)
	assert.Nil(t, d.SearchableHostnames())
}
