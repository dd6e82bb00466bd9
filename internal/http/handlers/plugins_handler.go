package handlers

import (
	"context"
	"time"

	"github.com/arimura/mangawatch/internal/registry"
	"github.com/gofiber/fiber/v2"
)

// PluginsHandler exposes read-only introspection over the parser registry:
// which site plugins are loaded and whether they currently respond.
type PluginsHandler struct {
	registry *registry.Registry
}

func NewPluginsHandler(reg *registry.Registry) *PluginsHandler {
	return &PluginsHandler{registry: reg}
}

func (h *PluginsHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"hostnames":           h.registry.Hostnames(),
		"searchableHostnames": h.registry.SearchableHostnames(),
	})
}

func (h *PluginsHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()
	return c.JSON(fiber.Map{"items": h.registry.Health(ctx)})
}
