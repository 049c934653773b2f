// Package vba encodes and decodes the streams of a VBA project: the dir
// stream records, the PROJECT and PROJECTwm streams, _VBA_PROJECT and the
// module source streams.
package vba

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ModuleKind classifies a module. The order of the constants is the order
// used by the PROJECT and PROJECTwm streams.
type ModuleKind int

const (
	StandardModule ModuleKind = iota
	ClassModule
	DocumentModule
)

// String returns the keyword used for the kind in the PROJECT stream.
func (k ModuleKind) String() string {
	switch k {
	case StandardModule:
		return "Module"
	case ClassModule:
		return "Class"
	case DocumentModule:
		return "Document"
	default:
		return fmt.Sprintf("ModuleKind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k ModuleKind) Valid() bool {
	return k >= StandardModule && k <= DocumentModule
}

// Extension returns the file extension a module of kind k is exported with.
func (k ModuleKind) Extension() string {
	switch k {
	case StandardModule:
		return ".bas"
	case DocumentModule:
		return ".doccls"
	default:
		return ".cls"
	}
}

// KindFromExtension maps an exported file extension back to a kind.
func KindFromExtension(ext string) (ModuleKind, bool) {
	switch strings.ToLower(ext) {
	case ".bas":
		return StandardModule, true
	case ".cls":
		return ClassModule, true
	case ".doccls":
		return DocumentModule, true
	}
	return 0, false
}

// ParseModuleKind accepts the PROJECT keywords and a few common aliases.
func ParseModuleKind(s string) (ModuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "module", "standard", "bas":
		return StandardModule, nil
	case "class", "cls":
		return ClassModule, nil
	case "document", "doc", "doccls":
		return DocumentModule, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
}

// Module is one source unit of a project.
type Module struct {
	Name   string
	Kind   ModuleKind
	Source string
}

// Project is the input of a compile.
type Project struct {
	ID          uuid.UUID
	Name        string
	Description string
	HelpFile    string
	Constants   string
	// Hidden marks the project as not viewable in the editor.
	Hidden  bool
	Modules []Module

	// Version and Company are carried for the document packaging layer and
	// are not written to any stream.
	Version string
	Company string
}

// NewProject returns a project with a random identifier.
func NewProject(name string) *Project {
	return &Project{ID: uuid.New(), Name: name}
}

// AddModule appends a module, keeping caller order.
func (p *Project) AddModule(name string, kind ModuleKind, source string) {
	p.Modules = append(p.Modules, Module{Name: name, Kind: kind, Source: source})
}

// IDString renders the identifier as a braced uppercase GUID, the form
// written to the PROJECT stream and used as the encryption key.
func (p *Project) IDString() string {
	return "{" + strings.ToUpper(p.ID.String()) + "}"
}

// SortedModules returns the modules stably ordered by kind.
func (p *Project) SortedModules() []Module {
	sorted := slices.Clone(p.Modules)
	slices.SortStableFunc(sorted, func(a, b Module) int {
		return int(a.Kind) - int(b.Kind)
	})
	return sorted
}

// Field limits in code page bytes.
const (
	MaxNameLength        = 128
	MaxDescriptionLength = 2000
	MaxHelpFileLength    = 260
	MaxConstantsLength   = 1015
)

// Validate checks every field constraint of the project against the
// given encoding.
func (p *Project) Validate(enc *Encoding) error {
	name := enc.ANSI(p.Name)
	switch {
	case len(name) == 0:
		return validationErrorf("ProjectName", "must not be empty")
	case len(name) > MaxNameLength:
		return validationErrorf("ProjectName", "%d bytes exceeds %d", len(name), MaxNameLength)
	case hasNUL(name):
		return validationErrorf("ProjectName", "must not contain NUL characters")
	}

	if err := checkText("ProjectDescription", enc.ANSI(p.Description), MaxDescriptionLength); err != nil {
		return err
	}
	if err := checkText("ProjectHelpFilePath", enc.ANSI(p.HelpFile), MaxHelpFileLength); err != nil {
		return err
	}
	if err := checkText("ProjectConstants", enc.ANSI(p.Constants), MaxConstantsLength); err != nil {
		return err
	}

	if len(p.Modules) > 0xFFFF {
		return validationErrorf("Modules", "%d modules exceeds %d", len(p.Modules), 0xFFFF)
	}

	// Duplicate names surface when the module streams are created.
	for _, m := range p.Modules {
		if err := m.validate(enc); err != nil {
			return err
		}
	}
	return nil
}

func (m Module) validate(enc *Encoding) error {
	name := enc.ANSI(m.Name)
	switch {
	case len(name) == 0:
		return validationErrorf("ModuleName", "must not be empty")
	case hasNUL(name):
		return validationErrorf("ModuleName", "%q must not contain NUL characters", m.Name)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("module %q: %w: %d", m.Name, ErrUnsupportedKind, int(m.Kind))
	}
	return nil
}

func checkText(field string, b []byte, limit int) error {
	if len(b) > limit {
		return validationErrorf(field, "%d bytes exceeds %d", len(b), limit)
	}
	if hasNUL(b) {
		return validationErrorf(field, "must not contain NUL characters")
	}
	return nil
}
