package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// GetGlobalConfigDir returns the path to the global configuration directory (~/.finconcept).
// This is the source of truth for where global config lives.
// It's a variable to allow overriding in tests.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".finconcept"), nil
}

// GetCacheBasePath returns the directory holding the concept cache database.
// Resolution order (first match wins):
// 1. Explicit config via "cache.path" (Viper/env/flag)
// 2. Local project directory: <project.rootDir>/cache (if it exists)
// 3. XDG_DATA_HOME/finconcept/cache (if XDG_DATA_HOME is set)
// 4. Global fallback: ~/.finconcept/cache
func GetCacheBasePath() string {
	// 1. Check Viper config (flags/config file/env)
	if path := viper.GetString("cache.path"); path != "" {
		return path
	}

	// 2. Check for a local project cache directory
	// This allows per-project isolation when running from within a project
	if root := viper.GetString("project.rootDir"); root != "" {
		localCache := filepath.Join(root, "cache")
		if info, err := os.Stat(localCache); err == nil && info.IsDir() {
			return localCache
		}
	}

	// 3. Check XDG_DATA_HOME
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "finconcept", "cache")
	}

	// 4. Fallback to ~/.finconcept/cache (global)
	dir, err := GetGlobalConfigDir()
	if err != nil {
		return "./cache"
	}
	return filepath.Join(dir, "cache")
}
