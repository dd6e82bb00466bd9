// Package registry implements the Parser Registry (§4.G): a hostname→plugin
// lookup over every configured site plugin, plus the parallel search
// fan-out and health sweep the thin HTTP surface exposes.
package registry

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/arimura/mangawatch/internal/catalog"
	"github.com/arimura/mangawatch/internal/parseerr"
	"github.com/arimura/mangawatch/internal/plugins"
)

// secondLevelPattern collapses a hostname to its registrable second-level
// domain, e.g. "cdn.assets.mangadex.org" -> "mangadex.org".
var secondLevelPattern = regexp.MustCompile(`^.+\.([^.]+\.[^.]+)$`)

func normalizeHostname(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if match := secondLevelPattern.FindStringSubmatch(host); match != nil {
		return match[1]
	}
	return host
}

// Registry maps collapsed hostnames to plugins. New builds the hostname
// index and Register can add plugins afterwards, so Register takes the
// write lock and every read path (dispatch, search, hostname listing,
// health) takes the read lock.
type Registry struct {
	mu      sync.RWMutex
	plugins []plugins.Plugin
	byHost  map[string]plugins.Plugin
}

type HealthStatus struct {
	Key     string
	Name    string
	Healthy bool
	Error   string
}

// New builds a Registry over a fixed plugin list.
func New(list []plugins.Plugin) *Registry {
	r := &Registry{
		plugins: append([]plugins.Plugin(nil), list...),
		byHost:  map[string]plugins.Plugin{},
	}
	for _, plugin := range r.plugins {
		for _, host := range plugin.Hostnames() {
			r.byHost[normalizeHostname(host)] = plugin
		}
	}
	return r
}

// Register adds a plugin after construction (used by tests and by
// cmd/server when wiring a compiled-in override plugin on top of the
// YAML-loaded set).
func (r *Registry) Register(p plugins.Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = append(r.plugins, p)
	for _, host := range p.Hostnames() {
		r.byHost[normalizeHostname(host)] = p
	}
}

func (r *Registry) find(rawURL string) (plugins.Plugin, error) {
	host, err := hostnameOf(rawURL)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byHost[normalizeHostname(host)]; ok {
		return p, nil
	}
	return nil, parseerr.NoParser(host)
}

func hostnameOf(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Hostname() == "" {
		return "", parseerr.NotAccepted(rawURL)
	}
	return parsed.Hostname(), nil
}

// Manga dispatches to the plugin owning url's hostname.
func (r *Registry) Manga(ctx context.Context, rawURL string) (catalog.Manga, error) {
	plugin, err := r.find(rawURL)
	if err != nil {
		return catalog.Manga{}, err
	}
	return plugin.Manga(ctx, rawURL)
}

// Images dispatches to the plugin owning pageURL's hostname.
func (r *Registry) Images(ctx context.Context, pageURL string) ([]string, error) {
	plugin, err := r.find(pageURL)
	if err != nil {
		return nil, err
	}
	return plugin.Images(ctx, pageURL)
}

type searchOutcome struct {
	results []catalog.SearchResult
	err     error
}

// Search fans out to every plugin whose searchable hostnames intersect
// requestedHostnames, running them in parallel. Per-plugin failures are
// logged and dropped (the caller only sees the union of successes).
func (r *Registry) Search(ctx context.Context, keyword string, requestedHostnames []string) []catalog.SearchResult {
	requested := make(map[string]struct{}, len(requestedHostnames))
	for _, h := range requestedHostnames {
		requested[normalizeHostname(h)] = struct{}{}
	}

	r.mu.RLock()
	candidates := make([]plugins.Plugin, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		for _, host := range plugin.SearchableHostnames() {
			if _, ok := requested[normalizeHostname(host)]; ok {
				candidates = append(candidates, plugin)
				break
			}
		}
	}
	r.mu.RUnlock()

	outcomes := make([]searchOutcome, len(candidates))
	var wg sync.WaitGroup
	wg.Add(len(candidates))
	for i, plugin := range candidates {
		i, plugin := i, plugin
		go func() {
			defer wg.Done()
			// A plugin panicking (e.g. on a malformed selector) must not
			// take down the whole fan-out; the generic parser guards its own
			// Manga/Images/Search entry points, but plugins without such a
			// guard (the MangaDex plugin) rely on this one.
			defer func() {
				if rec := recover(); rec != nil {
					outcomes[i] = searchOutcome{err: parseerr.BadDocument(rec)}
				}
			}()
			results, err := plugin.Search(ctx, keyword, requestedHostnames)
			outcomes[i] = searchOutcome{results: results, err: err}
		}()
	}
	wg.Wait()

	var all []catalog.SearchResult
	for i, outcome := range outcomes {
		if outcome.err != nil {
			slog.Warn("plugin search failed", "plugin", candidates[i].Key(), "error", outcome.err)
			continue
		}
		all = append(all, outcome.results...)
	}
	return all
}

// Hostnames is the union of every plugin's supported hostnames.
func (r *Registry) Hostnames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	for host := range r.byHost {
		seen[host] = struct{}{}
	}
	return sortedKeys(seen)
}

// SearchableHostnames is the union of every plugin's search-capable
// hostnames.
func (r *Registry) SearchableHostnames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	for _, plugin := range r.plugins {
		for _, host := range plugin.SearchableHostnames() {
			seen[normalizeHostname(host)] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// CanSearch reports whether any plugin can search at all, mirroring the
// original's can_search() used to fail do_search fast when nothing in the
// registry supports search.
func (r *Registry) CanSearch() bool {
	return len(r.SearchableHostnames()) > 0
}

// Health probes every plugin in parallel.
func (r *Registry) Health(ctx context.Context) []HealthStatus {
	r.mu.RLock()
	list := append([]plugins.Plugin(nil), r.plugins...)
	r.mu.RUnlock()

	statuses := make([]HealthStatus, len(list))
	var wg sync.WaitGroup
	wg.Add(len(list))
	for i, plugin := range list {
		i, plugin := i, plugin
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					statuses[i] = HealthStatus{Key: plugin.Key(), Name: plugin.Name(), Healthy: false, Error: parseerr.BadDocument(rec).Error()}
				}
			}()
			err := plugin.HealthCheck(ctx)
			status := HealthStatus{Key: plugin.Key(), Name: plugin.Name(), Healthy: err == nil}
			if err != nil {
				status.Error = err.Error()
			}
			statuses[i] = status
		}()
	}
	wg.Wait()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Key < statuses[j].Key })
	return statuses
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
