package handlers_test

import (
	"database/sql"
	"io"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/arimura/mangawatch/internal/config"
	"github.com/arimura/mangawatch/internal/database"
	apihttp "github.com/arimura/mangawatch/internal/http"
	"github.com/arimura/mangawatch/internal/plugins"
	"github.com/arimura/mangawatch/internal/registry"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newSurfaceTestApp(t *testing.T) (*sql.DB, *fiber.App) {
	t.Helper()

	tmpDir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(tmpDir, "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(currentFile), "..", "..", "..", "migrations")
	require.NoError(t, database.ApplyMigrations(db, migrationsPath))

	reg := registry.New([]plugins.Plugin{})
	cfg := config.Config{AppName: "test-app"}
	app := apihttp.NewServer(cfg, db, reg)
	return db, app
}

func TestHealthEndpoint(t *testing.T) {
	_, app := newSurfaceTestApp(t)
	res, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestPluginsListEndpoint(t *testing.T) {
	_, app := newSurfaceTestApp(t)
	res, err := app.Test(httptest.NewRequest("GET", "/v1/plugins", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestMangaSearchEndpointRejectsUnknownField(t *testing.T) {
	_, app := newSurfaceTestApp(t)
	res, err := app.Test(httptest.NewRequest("GET", "/v1/manga/search?q=bogus:value", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, res.StatusCode)
}

func TestMangaSearchEndpointReturnsMatches(t *testing.T) {
	db, app := newSurfaceTestApp(t)
	_, err := db.Exec(`INSERT INTO manga (url, title, genres) VALUES (?, ?, ?)`,
		"https://example.com/solo", "Solo Leveling", `["action","fantasy"]`)
	require.NoError(t, err)

	res, err := app.Test(httptest.NewRequest("GET", "/v1/manga/search?q=genres:action", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Solo Leveling")
}

func TestMangaDetailEndpointNotFound(t *testing.T) {
	_, app := newSurfaceTestApp(t)
	res, err := app.Test(httptest.NewRequest("GET", "/v1/manga/999", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, res.StatusCode)
}

func TestMangaDetailEndpointReturnsRow(t *testing.T) {
	db, app := newSurfaceTestApp(t)
	res, err := db.Exec(`INSERT INTO manga (url, title) VALUES (?, ?)`, "https://example.com/solo", "Solo Leveling")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	httpRes, err := app.Test(httptest.NewRequest("GET", "/v1/manga/"+strconv.FormatInt(id, 10), nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, httpRes.StatusCode)
	body, err := io.ReadAll(httpRes.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Solo Leveling")
}
