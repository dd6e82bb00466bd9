// Package plugins defines the Plugin contract shared by declarative
// (YAML-driven) and structural (bespoke API) site plugins, and the
// declarative loader that adapts the donor's YAML connector idiom to the
// selector-shaped query model.
package plugins

import (
	"context"

	"github.com/arimura/mangawatch/internal/catalog"
	"github.com/arimura/mangawatch/internal/genericparser"
	"github.com/arimura/mangawatch/internal/query"
)

// Plugin is implemented by every site plugin, declarative or structural.
// The Parser Registry (§4.G) only ever talks to this interface.
type Plugin interface {
	Key() string
	Name() string
	Accepts(rawURL string) error
	Manga(ctx context.Context, rawURL string) (catalog.Manga, error)
	Images(ctx context.Context, pageURL string) ([]string, error)
	Search(ctx context.Context, keyword string, hostnames []string) ([]catalog.SearchResult, error)
	Hostnames() []string
	SearchableHostnames() []string
	HealthCheck(ctx context.Context) error
}

// Declarative wraps a *genericparser.Parser, adding the Key/Name/hostname
// bookkeeping the Plugin interface needs. This is what the YAML loader and
// any compiled-in override plugin produce.
type Declarative struct {
	key    string
	name   string
	Parser *genericparser.Parser
}

// NewDeclarative builds a Declarative plugin from an already-merged query.
func NewDeclarative(key, name string, q query.Query) *Declarative {
	return &Declarative{key: key, name: name, Parser: genericparser.New(q)}
}

func (d *Declarative) Key() string  { return d.key }
func (d *Declarative) Name() string { return d.name }

func (d *Declarative) Accepts(rawURL string) error {
	return d.Parser.Accepts(rawURL)
}

func (d *Declarative) Manga(ctx context.Context, rawURL string) (catalog.Manga, error) {
	return d.Parser.Manga(ctx, rawURL)
}

func (d *Declarative) Images(ctx context.Context, pageURL string) ([]string, error) {
	return d.Parser.Images(ctx, pageURL)
}

func (d *Declarative) Search(ctx context.Context, keyword string, hostnames []string) ([]catalog.SearchResult, error) {
	return d.Parser.Search(ctx, keyword, hostnames)
}

func (d *Declarative) Hostnames() []string {
	return d.Parser.Query.Hostnames
}

// SearchableHostnames is the search section's own hostname subset, falling
// back to every supported hostname when the plugin doesn't restrict it.
func (d *Declarative) SearchableHostnames() []string {
	if d.Parser.Query.Search != nil && len(d.Parser.Query.Search.Hostnames) > 0 {
		return d.Parser.Query.Search.Hostnames
	}
	if d.Parser.Query.Search == nil {
		return nil
	}
	return d.Parser.Query.Hostnames
}

// HealthCheck probes the first hostname's root page, which is cheap and
// enough to tell a site-wide outage from a selector drift.
func (d *Declarative) HealthCheck(ctx context.Context) error {
	hostnames := d.Hostnames()
	if len(hostnames) == 0 {
		return nil
	}
	_, err := d.Parser.Fetcher.Get(ctx, "https://"+hostnames[0]+"/", "")
	return err
}
