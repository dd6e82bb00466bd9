package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arimura/mangawatch/internal/query"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a declarative plugin: bookkeeping
// fields plus an inlined query.Query, generalizing the donor's
// yamlconnector.Config (key/name/enabled + JSON-API fields) to the
// selector-shaped schema.
type fileConfig struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"`
	query.Query `yaml:",inline"`
}

func (c *fileConfig) isEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// LoadDeclarativeDir loads every *.yaml/*.yml file in dirPath into a
// Declarative plugin, merging each against query.Default() so a plugin only
// needs to specify what differs from the baseline. A missing directory is
// not an error (no declarative plugins configured); per-file failures are
// collected and returned alongside whatever loaded successfully, mirroring
// the donor's LoadFromDir tolerance for partial failure.
func LoadDeclarativeDir(dirPath string) ([]*Declarative, error) {
	trimmed := strings.TrimSpace(dirPath)
	if trimmed == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plugin dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lower := strings.ToLower(entry.Name())
		if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
			files = append(files, filepath.Join(trimmed, entry.Name()))
		}
	}
	sort.Strings(files)

	loaded := make([]*Declarative, 0, len(files))
	var failures []string

	for _, filePath := range files {
		content, err := os.ReadFile(filePath)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(filePath), err))
			continue
		}

		var cfg fileConfig
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(filePath), err))
			continue
		}
		if !cfg.isEnabled() {
			continue
		}
		if cfg.Key == "" || len(cfg.Hostnames) == 0 {
			failures = append(failures, fmt.Sprintf("%s: key and hostnames are required", filepath.Base(filePath)))
			continue
		}

		merged := query.Merge(cfg.Query)
		loaded = append(loaded, NewDeclarative(cfg.Key, cfg.Name, merged))
	}

	if len(failures) > 0 {
		return loaded, fmt.Errorf("declarative plugins failed to load: %s", strings.Join(failures, " | "))
	}
	return loaded, nil
}
