// Package compiler assembles a VBA project into the compound file that
// Office embeds as vbaProject.bin.
package compiler

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/goopsie/vbamc/pkg/cfb"
	"github.com/goopsie/vbamc/pkg/compression"
	"github.com/goopsie/vbamc/pkg/encryption"
	"github.com/goopsie/vbamc/pkg/vba"
)

// Compiler turns projects into containers. A Compiler holds no per-compile
// state and may be reused.
type Compiler struct {
	random   encryption.Source
	logger   *log.Logger
	clock    func() time.Time
	codePage uint16
	info     vba.Information
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRandom sets the source of cipher seeds and padding.
func WithRandom(src encryption.Source) Option {
	return func(c *Compiler) {
		c.random = src
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithClock sets the clock used for storage timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Compiler) {
		c.clock = clock
	}
}

// WithCodePage sets the ANSI code page of every string in the project.
func WithCodePage(codePage uint16) Option {
	return func(c *Compiler) {
		c.codePage = codePage
	}
}

// WithSysKind sets the target platform written to the dir stream.
func WithSysKind(kind vba.SysKind) Option {
	return func(c *Compiler) {
		c.info.SysKind = kind
	}
}

// WithVersion sets the PROJECTVERSION record.
func WithVersion(v vba.ProjectVersion) Option {
	return func(c *Compiler) {
		c.info.Version = v
	}
}

// New returns a compiler with crypto/rand seeds, the 1252 code page and
// a discarding logger.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		random:   encryption.CryptoSource{},
		logger:   log.New(io.Discard),
		clock:    time.Now,
		codePage: vba.DefaultCodePage,
		info:     vba.DefaultInformation(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RenderedModule is a module after header rendering and compression.
type RenderedModule struct {
	Name   string
	Kind   vba.ModuleKind
	Source string
	Stream []byte
}

// Artifacts holds every stream of a compiled project next to the
// container they were written into.
type Artifacts struct {
	Container  []byte
	Dir        []byte // uncompressed
	Project    []byte
	ProjectWm  []byte
	VBAProject []byte
	Modules    []RenderedModule
}

// Compile is shorthand for New(opts...).Compile(p).
func Compile(p *vba.Project, opts ...Option) ([]byte, error) {
	return New(opts...).Compile(p)
}

// Compile returns the container bytes for p.
func (c *Compiler) Compile(p *vba.Project) ([]byte, error) {
	a, err := c.Build(p)
	if err != nil {
		return nil, err
	}
	return a.Container, nil
}

// Build encodes every stream of p and assembles the container. Nothing is
// returned on error.
func (c *Compiler) Build(p *vba.Project) (*Artifacts, error) {
	enc, err := vba.NewEncoding(c.codePage)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("compiling project", "name", p.Name, "id", p.IDString(), "modules", len(p.Modules))

	dir, err := vba.BuildDir(p, enc, c.info)
	if err != nil {
		return nil, fmt.Errorf("build dir stream: %w", err)
	}
	project, err := vba.BuildProjectStream(p, enc, c.random)
	if err != nil {
		return nil, fmt.Errorf("build project stream: %w", err)
	}

	sorted := p.SortedModules()
	names := make([]string, len(sorted))
	for i, m := range sorted {
		names[i] = m.Name
	}

	a := &Artifacts{
		Dir:        dir,
		Project:    project,
		ProjectWm:  vba.BuildModuleNameTable(names, enc),
		VBAProject: vba.VBAProjectStream(),
		Modules:    make([]RenderedModule, 0, len(p.Modules)),
	}

	for _, m := range p.Modules {
		source, err := vba.RenderSource(m)
		if err != nil {
			return nil, err
		}
		stream, err := vba.EncodeModule(m, enc)
		if err != nil {
			return nil, err
		}
		a.Modules = append(a.Modules, RenderedModule{
			Name:   m.Name,
			Kind:   m.Kind,
			Source: source,
			Stream: stream,
		})
		c.logger.Debug("rendered module", "name", m.Name, "kind", m.Kind, "size", len(stream))
	}

	if a.Container, err = c.assemble(a); err != nil {
		return nil, err
	}

	c.logger.Debug("assembled container", "size", len(a.Container))
	return a, nil
}

func (c *Compiler) assemble(a *Artifacts) ([]byte, error) {
	f := cfb.New(cfb.WithClock(c.clock))
	root := f.Root()

	if err := root.CreateStream(vba.ProjectStreamName, a.Project); err != nil {
		return nil, fmt.Errorf("create %s stream: %w", vba.ProjectStreamName, err)
	}
	if err := root.CreateStream(vba.ProjectWmStreamName, a.ProjectWm); err != nil {
		return nil, fmt.Errorf("create %s stream: %w", vba.ProjectWmStreamName, err)
	}

	storage, err := root.CreateStorage(vba.StorageName)
	if err != nil {
		return nil, fmt.Errorf("create %s storage: %w", vba.StorageName, err)
	}
	if err := storage.CreateStream(vba.VBAProjectName, a.VBAProject); err != nil {
		return nil, fmt.Errorf("create %s stream: %w", vba.VBAProjectName, err)
	}
	if err := storage.CreateStream(vba.DirStreamName, compression.Compress(a.Dir)); err != nil {
		return nil, fmt.Errorf("create %s stream: %w", vba.DirStreamName, err)
	}
	for _, m := range a.Modules {
		if err := storage.CreateStream(m.Name, m.Stream); err != nil {
			return nil, fmt.Errorf("create module stream %q: %w", m.Name, err)
		}
	}

	data, err := f.Bytes()
	if err != nil {
		return nil, fmt.Errorf("write container: %w", err)
	}
	return data, nil
}
