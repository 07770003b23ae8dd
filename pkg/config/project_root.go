package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveModuleDir returns the absolute directory module descriptors live in.
// A leading ~ is expanded to the user's home directory.
func ResolveModuleDir(cfg *Config) string {
	if cfg != nil {
		dir := expandHomeDir(strings.TrimSpace(cfg.Apps.ModuleDir))
		if dir != "" {
			if abs, err := filepath.Abs(dir); err == nil {
				return abs
			}
			return dir
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, "modules")
	}
	return "modules"
}

func expandHomeDir(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = os.Getenv("HOME")
		}
		if home == "" {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
