// Package http wires the deliberately thin HTTP surface: health,
// read-only plugin introspection, and catalog search. User-facing
// reading-progress CRUD and the dashboard UI are out of scope here.
package http

import (
	"database/sql"

	"github.com/arimura/mangawatch/internal/config"
	"github.com/arimura/mangawatch/internal/http/handlers"
	"github.com/arimura/mangawatch/internal/registry"
	"github.com/arimura/mangawatch/internal/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func NewServer(cfg config.Config, db *sql.DB, reg *registry.Registry) *fiber.App {
	return NewServerWithRefresher(cfg, db, reg, nil)
}

func NewServerWithRefresher(cfg config.Config, db *sql.DB, reg *registry.Registry, refresher *scheduler.Refresher) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})

	app.Use(recover.New())

	health := handlers.NewHealthHandler(db)
	plugins := handlers.NewPluginsHandler(reg)
	search := handlers.NewSearchHandler(db)
	var manga *handlers.MangaHandler
	if refresher != nil {
		manga = handlers.NewMangaHandler(db, refresher)
	} else {
		manga = handlers.NewMangaHandler(db, nil)
	}

	app.Get("/health", health.Check)

	v1 := app.Group("/v1")
	v1.Get("/health", health.Check)
	v1.Get("/plugins", plugins.List)
	v1.Get("/plugins/health", plugins.Health)
	v1.Get("/manga/search", search.Search)
	v1.Get("/manga/:id", manga.Get)

	return app
}
