package vba

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type loadConfig struct {
	profilePath string
	separator   string
}

// LoadOption configures ModuleFromFile.
type LoadOption func(*loadConfig)

// WithUserProfilePath sets the directory substituted for "~/" in sources.
func WithUserProfilePath(path string) LoadOption {
	return func(c *loadConfig) {
		c.profilePath = path
	}
}

// WithMacPaths uses "/" after the substituted profile path regardless of
// the host platform.
func WithMacPaths(mac bool) LoadOption {
	return func(c *loadConfig) {
		if mac {
			c.separator = "/"
		}
	}
}

// ModuleFromFile reads a module source file. The module name is the file
// name without extension.
func ModuleFromFile(path string, kind ModuleKind, opts ...LoadOption) (Module, error) {
	cfg := loadConfig{separator: string(os.PathSeparator)}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.profilePath = home
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !kind.Valid() {
		return Module{}, fmt.Errorf("load %s: %w: %d", path, ErrUnsupportedKind, int(kind))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Module{}, fmt.Errorf("read module: %w", err)
	}

	base := filepath.Base(path)
	return Module{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Kind:   kind,
		Source: ExpandProfilePath(string(data), cfg.profilePath, cfg.separator),
	}, nil
}

// ExpandProfilePath replaces every "~/" in source with profile followed by
// sep. An empty profile leaves source unchanged.
func ExpandProfilePath(source, profile, sep string) string {
	if profile == "" {
		return source
	}
	return strings.ReplaceAll(source, "~/", strings.TrimRight(profile, `/\`)+sep)
}
