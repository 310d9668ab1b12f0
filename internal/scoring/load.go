package scoring

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Load reads scoring tables from a YAML file. Values present in the file
// override the built-in defaults key by key; omitted fields keep their
// defaults, so a tuning file only needs the weights it changes.
func Load(fsys afero.Fs, path string) (*Tables, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read scoring tables: %w", err)
	}

	tables := DefaultTables()
	if err := yaml.Unmarshal(data, tables); err != nil {
		return nil, fmt.Errorf("parse scoring tables: %w", err)
	}
	if tables.Version != TablesVersion {
		return nil, fmt.Errorf("unsupported scoring tables version %d (want %d)", tables.Version, TablesVersion)
	}
	if tables.Threshold < 0 {
		return nil, fmt.Errorf("threshold must not be negative, got %g", tables.Threshold)
	}
	if tables.MaxRelated < 0 {
		return nil, fmt.Errorf("maxRelated must not be negative, got %d", tables.MaxRelated)
	}
	return tables, nil
}

// LoadOrDefault loads tables from path, falling back to the built-in
// defaults when path is empty, missing, or unparseable. A bad tuning file
// is logged, never fatal; it must not take enrichment down.
func LoadOrDefault(fsys afero.Fs, path string, logger *slog.Logger) *Tables {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return DefaultTables()
	}

	exists, err := afero.Exists(fsys, path)
	if err != nil || !exists {
		logger.Debug("scoring tables file not found, using defaults", "path", path)
		return DefaultTables()
	}

	tables, err := Load(fsys, path)
	if err != nil {
		logger.Warn("falling back to built-in scoring tables", "path", path, "error", err)
		return DefaultTables()
	}
	return tables
}
