package handlers

import (
	"database/sql"
	"encoding/json"

	"github.com/arimura/mangawatch/internal/searchquery"
	"github.com/gofiber/fiber/v2"
)

// SearchHandler answers catalog search requests by compiling the query
// string's `q` parameter with searchquery and running the resulting
// parameterized WHERE clause against the manga table.
type SearchHandler struct {
	db *sql.DB
}

func NewSearchHandler(db *sql.DB) *SearchHandler {
	return &SearchHandler{db: db}
}

type mangaSummary struct {
	ID          int64    `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CoverURL    string   `json:"coverUrl"`
	Ongoing     bool     `json:"ongoing"`
	Genres      []string `json:"genres"`
}

func (h *SearchHandler) Search(c *fiber.Ctx) error {
	q := c.Query("q")

	clauses, err := searchquery.Compile(searchquery.Parse(q))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	where, args := searchquery.Where(clauses)

	rows, err := h.db.QueryContext(c.Context(), `
		SELECT id, url, title, description, cover_url, ongoing, genres
		FROM manga
		WHERE `+where+`
		ORDER BY updated_at DESC
		LIMIT 50
	`, args...)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "search query failed"})
	}
	defer rows.Close()

	results := make([]mangaSummary, 0)
	for rows.Next() {
		var item mangaSummary
		var genresJSON string
		if err := rows.Scan(&item.ID, &item.URL, &item.Title, &item.Description, &item.CoverURL, &item.Ongoing, &genresJSON); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "scan failed"})
		}
		_ = json.Unmarshal([]byte(genresJSON), &item.Genres)
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "search query failed"})
	}

	return c.JSON(fiber.Map{"items": results})
}
