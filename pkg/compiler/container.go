package compiler

import (
	"bytes"
	"fmt"

	"github.com/goopsie/vbamc/pkg/cfb"
	"github.com/goopsie/vbamc/pkg/compression"
	"github.com/goopsie/vbamc/pkg/vba"
)

// ModuleEntry is one row of a container's module table.
type ModuleEntry struct {
	Name   string
	Kind   vba.ModuleKind
	Offset uint32
}

// ExtractedModule is a module's source text read back from a container.
type ExtractedModule struct {
	Name   string
	Kind   vba.ModuleKind
	Source string
}

// Container is a compiled project opened for inspection.
type Container struct {
	Info *vba.DirInfo

	file    *cfb.File
	storage *cfb.Storage
	enc     *vba.Encoding
}

// Open parses a container and decodes its dir stream.
func Open(data []byte) (*Container, error) {
	f, err := cfb.ReadBytes(data)
	if err != nil {
		return nil, err
	}

	storage, err := f.Root().Storage(vba.StorageName)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", vba.StorageName, err)
	}
	dir, err := storage.Stream(vba.DirStreamName)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", vba.DirStreamName, err)
	}
	info, err := vba.DecodeDir(dir)
	if err != nil {
		return nil, fmt.Errorf("decode dir stream: %w", err)
	}
	enc, err := vba.NewEncoding(info.CodePage)
	if err != nil {
		return nil, err
	}

	return &Container{Info: info, file: f, storage: storage, enc: enc}, nil
}

// Modules returns the module table in dir stream order.
func (c *Container) Modules() []ModuleEntry {
	out := make([]ModuleEntry, len(c.Info.Modules))
	for i, m := range c.Info.Modules {
		out[i] = ModuleEntry{Name: m.Name, Kind: m.Kind, Offset: m.Offset}
	}
	return out
}

// Source decompresses a module stream from its recorded offset.
func (c *Container) Source(m vba.ModuleInfo) (string, error) {
	stream, err := c.storage.Stream(m.StreamName)
	if err != nil {
		return "", fmt.Errorf("open module stream %q: %w", m.StreamName, err)
	}
	if uint64(m.Offset) > uint64(len(stream)) {
		return "", fmt.Errorf("%w: module %q offset %d past stream end %d", vba.ErrMalformed, m.Name, m.Offset, len(stream))
	}

	plain, err := compression.Decompress(stream[m.Offset:])
	if err != nil {
		return "", fmt.Errorf("decompress module %q: %w", m.Name, err)
	}
	// Drop the padding of a raw final chunk; source text holds no NULs.
	return c.enc.DecodeANSI(bytes.TrimRight(plain, "\x00"))
}

// Extract returns the source of every module in dir stream order.
func (c *Container) Extract() ([]ExtractedModule, error) {
	out := make([]ExtractedModule, 0, len(c.Info.Modules))
	for _, m := range c.Info.Modules {
		src, err := c.Source(m)
		if err != nil {
			return nil, err
		}
		out = append(out, ExtractedModule{Name: m.Name, Kind: m.Kind, Source: src})
	}
	return out, nil
}

// Project parses the PROJECT stream.
func (c *Container) Project() (*vba.ProjectProperties, error) {
	data, err := c.file.Root().Stream(vba.ProjectStreamName)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", vba.ProjectStreamName, err)
	}
	return vba.ParseProjectStream(data, c.enc)
}

// ModuleNames parses the PROJECTwm stream.
func (c *Container) ModuleNames() ([]string, error) {
	data, err := c.file.Root().Stream(vba.ProjectWmStreamName)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", vba.ProjectWmStreamName, err)
	}
	return vba.ParseModuleNameTable(data)
}

// ListModules returns the name and source offset of every module.
func ListModules(data []byte) ([]ModuleEntry, error) {
	c, err := Open(data)
	if err != nil {
		return nil, err
	}
	return c.Modules(), nil
}

// ExtractModules returns the decoded source of every module.
func ExtractModules(data []byte) ([]ExtractedModule, error) {
	c, err := Open(data)
	if err != nil {
		return nil, err
	}
	return c.Extract()
}
