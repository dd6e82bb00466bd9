package ingestion

import (
	"context"
	"database/sql"
	"testing"

	"github.com/arimura/mangawatch/internal/catalog"
	"github.com/arimura/mangawatch/internal/plugins"
	"github.com/arimura/mangawatch/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type stubPlugin struct {
	manga catalog.Manga
	key   string
}

func (s stubPlugin) Key() string  { return s.key }
func (s stubPlugin) Name() string { return s.key }
func (s stubPlugin) Accepts(string) error { return nil }
func (s stubPlugin) Manga(ctx context.Context, url string) (catalog.Manga, error) {
	return s.manga, nil
}
func (s stubPlugin) Images(ctx context.Context, pageURL string) ([]string, error) { return nil, nil }
func (s stubPlugin) Search(ctx context.Context, keyword string, hostnames []string) ([]catalog.SearchResult, error) {
	return nil, nil
}
func (s stubPlugin) Hostnames() []string           { return []string{"example.com"} }
func (s stubPlugin) SearchableHostnames() []string { return nil }
func (s stubPlugin) HealthCheck(ctx context.Context) error { return nil }

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE manga (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			cover_url TEXT NOT NULL DEFAULT '',
			ongoing INTEGER NOT NULL DEFAULT 1,
			alt_titles TEXT NOT NULL DEFAULT '[]',
			authors TEXT NOT NULL DEFAULT '[]',
			genres TEXT NOT NULL DEFAULT '[]'
		);
		CREATE TABLE chapter (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			manga_id INTEGER NOT NULL,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			number REAL NOT NULL,
			posted_at DATETIME
		);
	`)
	require.NoError(t, err)
	return db
}

func TestSaveMangaInsertsNewManga(t *testing.T) {
	db := openTestDB(t)
	manga := catalog.Manga{
		URL:   "https://example.com/manga/solo",
		Title: "Solo Leveling",
		Chapters: []catalog.Chapter{
			{URL: "https://example.com/manga/solo/c1", Title: "Chapter 1", Number: 1},
			{URL: "https://example.com/manga/solo/c2", Title: "Chapter 2", Number: 2},
		},
	}
	reg := registry.New([]plugins.Plugin{stubPlugin{manga: manga, key: "stub"}})
	pipeline := New(db, reg)

	summary, err := pipeline.SaveManga(context.Background(), nil, manga.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ChapterCount)
}

func TestSaveMangaIsIdempotentOnChapterURL(t *testing.T) {
	db := openTestDB(t)
	manga := catalog.Manga{
		URL:   "https://example.com/manga/solo",
		Title: "Solo Leveling",
		Chapters: []catalog.Chapter{
			{URL: "https://example.com/manga/solo/c1", Title: "Chapter 1", Number: 1},
		},
	}
	reg := registry.New([]plugins.Plugin{stubPlugin{manga: manga, key: "stub"}})
	pipeline := New(db, reg)

	first, err := pipeline.SaveManga(context.Background(), nil, manga.URL)
	require.NoError(t, err)

	id := first.MangaID
	second, err := pipeline.SaveManga(context.Background(), &id, manga.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ChapterCount)
}

func TestSaveMangaResetHeuristicRequiresThresholdAndDrop(t *testing.T) {
	db := openTestDB(t)

	big := catalog.Manga{URL: "https://example.com/manga/solo", Title: "Solo Leveling"}
	for i := 1; i <= 5; i++ {
		big.Chapters = append(big.Chapters, catalog.Chapter{
			URL:    "https://example.com/manga/solo/c" + string(rune('0'+i)),
			Number: float64(i),
		})
	}
	reg := registry.New([]plugins.Plugin{stubPlugin{manga: big, key: "stub"}})
	pipeline := New(db, reg)

	first, err := pipeline.SaveManga(context.Background(), nil, big.URL)
	require.NoError(t, err)
	require.Equal(t, 5, first.ChapterCount)

	small := big
	small.Chapters = big.Chapters[:1] // drop from 5 to 1: exceeds resetDrop, stored >= resetThreshold
	regSmall := registry.New([]plugins.Plugin{stubPlugin{manga: small, key: "stub"}})
	pipelineSmall := New(db, regSmall)

	id := first.MangaID
	second, err := pipelineSmall.SaveManga(context.Background(), &id, small.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ChapterCount, "reset heuristic should have cleared old chapters")
}

func TestBatchIngestStreamsResults(t *testing.T) {
	db := openTestDB(t)
	manga := catalog.Manga{URL: "https://example.com/manga/solo", Title: "Solo Leveling"}
	reg := registry.New([]plugins.Plugin{stubPlugin{manga: manga, key: "stub"}})
	pipeline := New(db, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	urls := make(chan string, 1)
	urls <- manga.URL
	close(urls)

	out := pipeline.BatchIngest(ctx, urls)
	result := <-out
	assert.NoError(t, result.Err)
	assert.Equal(t, manga.URL, result.URL)
}
