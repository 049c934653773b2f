// Package config loads project definition files. A definition names the
// project, its metadata and the module source files to compile.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/goopsie/vbamc/pkg/compiler"
	"github.com/goopsie/vbamc/pkg/vba"
)

// EnvPrefix prefixes the environment variables that override scalar keys,
// e.g. VBAMC_NAME or VBAMC_CODEPAGE.
const EnvPrefix = "VBAMC"

// ModuleSpec is one module entry of a definition.
type ModuleSpec struct {
	Path string `mapstructure:"path"`
	// Kind is optional; the file extension decides when it is empty.
	Kind string `mapstructure:"kind"`
}

// Project is a parsed definition file.
type Project struct {
	Name            string       `mapstructure:"name"`
	ID              string       `mapstructure:"id"`
	Version         string       `mapstructure:"version"`
	Company         string       `mapstructure:"company"`
	Description     string       `mapstructure:"description"`
	HelpFile        string       `mapstructure:"helpFile"`
	Constants       string       `mapstructure:"constants"`
	Hidden          bool         `mapstructure:"hidden"`
	CodePage        uint16       `mapstructure:"codePage"`
	SysKind         string       `mapstructure:"sysKind"`
	UserProfilePath string       `mapstructure:"userProfilePath"`
	Mac             bool         `mapstructure:"mac"`
	SourceDir       string       `mapstructure:"sourceDir"`
	Modules         []ModuleSpec `mapstructure:"modules"`

	// BaseDir resolves relative module paths. Load sets it to the
	// directory of the definition file.
	BaseDir string `mapstructure:"-"`
}

var scalarKeys = []string{
	"name", "id", "version", "company", "description", "helpFile", "constants",
	"hidden", "codePage", "sysKind", "userProfilePath", "mac", "sourceDir",
}

// Load reads a YAML, TOML or JSON definition. Environment variables with
// the VBAMC_ prefix override scalar keys.
func Load(path string) (*Project, error) {
	v := viper.New()
	v.SetDefault("codePage", vba.DefaultCodePage)
	v.SetDefault("sysKind", vba.SysKindWin32.String())

	v.SetEnvPrefix(EnvPrefix)
	for _, key := range scalarKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read project definition: %w", err)
	}

	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("parse project definition: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	p.BaseDir = filepath.Dir(abs)
	return &p, nil
}

// Build loads every module file and returns the project to compile.
// Explicit modules come first, followed by those found under SourceDir.
func (p *Project) Build() (*vba.Project, error) {
	id := uuid.New()
	if p.ID != "" {
		var err error
		if id, err = uuid.Parse(p.ID); err != nil {
			return nil, fmt.Errorf("parse project id %q: %w", p.ID, err)
		}
	}

	out := &vba.Project{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		HelpFile:    p.HelpFile,
		Constants:   p.Constants,
		Hidden:      p.Hidden,
		Version:     p.Version,
		Company:     p.Company,
	}

	specs := p.Modules
	if p.SourceDir != "" {
		scanned, err := ScanModules(p.resolve(p.SourceDir))
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.SourceDir, err)
		}
		specs = append(specs[:len(specs):len(specs)], scanned...)
	}

	opts := []vba.LoadOption{vba.WithMacPaths(p.Mac)}
	if p.UserProfilePath != "" {
		opts = append(opts, vba.WithUserProfilePath(p.UserProfilePath))
	}

	for _, spec := range specs {
		kind, err := spec.kind()
		if err != nil {
			return nil, err
		}
		m, err := vba.ModuleFromFile(p.resolve(spec.Path), kind, opts...)
		if err != nil {
			return nil, err
		}
		out.Modules = append(out.Modules, m)
	}

	return out, nil
}

// CompilerOptions returns the compiler settings carried by the definition.
func (p *Project) CompilerOptions() ([]compiler.Option, error) {
	kind, err := ParseSysKind(p.SysKind)
	if err != nil {
		return nil, err
	}
	codePage := p.CodePage
	if codePage == 0 {
		codePage = vba.DefaultCodePage
	}
	return []compiler.Option{
		compiler.WithCodePage(codePage),
		compiler.WithSysKind(kind),
	}, nil
}

// ParseSysKind accepts the SysKind names case-insensitively. Empty means
// Win32.
func ParseSysKind(s string) (vba.SysKind, error) {
	if s == "" {
		return vba.SysKindWin32, nil
	}
	for _, kind := range []vba.SysKind{vba.SysKindWin16, vba.SysKindWin32, vba.SysKindMac, vba.SysKindWin64} {
		if strings.EqualFold(s, kind.String()) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown system kind %q", s)
}

func (p *Project) resolve(path string) string {
	if filepath.IsAbs(path) || p.BaseDir == "" {
		return path
	}
	return filepath.Join(p.BaseDir, path)
}

func (s ModuleSpec) kind() (vba.ModuleKind, error) {
	if s.Kind != "" {
		return vba.ParseModuleKind(s.Kind)
	}
	kind, ok := vba.KindFromExtension(filepath.Ext(s.Path))
	if !ok {
		return 0, fmt.Errorf("%w: cannot infer kind of %s", vba.ErrUnsupportedKind, s.Path)
	}
	return kind, nil
}
