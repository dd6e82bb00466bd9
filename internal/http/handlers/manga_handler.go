package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

// staleRefresher is the subset of *scheduler.Refresher the manga detail
// handler needs; kept as an interface so this package doesn't import
// scheduler.
type staleRefresher interface {
	RefreshIfStale(ctx context.Context, mangaID int64, url string, updatedAt time.Time) error
}

type MangaHandler struct {
	db        *sql.DB
	refresher staleRefresher
}

func NewMangaHandler(db *sql.DB, refresher staleRefresher) *MangaHandler {
	return &MangaHandler{db: db, refresher: refresher}
}

type mangaDetail struct {
	mangaSummary
	AltTitles  []string `json:"altTitles"`
	Authors    []string `json:"authors"`
	UpdatedAgo string   `json:"updatedAgo"`
}

func (h *MangaHandler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid manga id"})
	}

	var (
		detail                                mangaDetail
		url                                    string
		genresJSON, authorsJSON, altTitlesJSON string
		updatedAt                              time.Time
	)
	err = h.db.QueryRowContext(c.Context(), `
		SELECT id, url, title, description, cover_url, ongoing, genres, authors, alt_titles, updated_at
		FROM manga WHERE id = ?
	`, id).Scan(&detail.ID, &url, &detail.Title, &detail.Description, &detail.CoverURL, &detail.Ongoing, &genresJSON, &authorsJSON, &altTitlesJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "manga not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}
	detail.URL = url
	detail.UpdatedAgo = humanize.Time(updatedAt)
	_ = json.Unmarshal([]byte(genresJSON), &detail.Genres)
	_ = json.Unmarshal([]byte(authorsJSON), &detail.Authors)
	_ = json.Unmarshal([]byte(altTitlesJSON), &detail.AltTitles)

	if h.refresher != nil {
		if err := h.refresher.RefreshIfStale(c.Context(), detail.ID, url, updatedAt); err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "refresh failed"})
		}
	}

	return c.JSON(detail)
}
