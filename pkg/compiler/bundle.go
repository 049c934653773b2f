package compiler

import (
	"io"
	"path"

	"github.com/goopsie/vbamc/pkg/archive"
	"github.com/goopsie/vbamc/pkg/vba"
)

// Bundle entry names.
const (
	BundleDir        = "dir.bin"
	BundleModulesDir = "modules"
)

// BundleEntries lists the intermediate streams in bundle order: the
// uncompressed dir stream, PROJECT, PROJECTwm, _VBA_PROJECT and each
// module's rendered source as UTF-8.
func (a *Artifacts) BundleEntries() []archive.Entry {
	entries := []archive.Entry{
		{Name: BundleDir, Data: a.Dir},
		{Name: vba.ProjectStreamName, Data: a.Project},
		{Name: vba.ProjectWmStreamName, Data: a.ProjectWm},
		{Name: vba.VBAProjectName, Data: a.VBAProject},
	}
	for _, m := range a.Modules {
		entries = append(entries, archive.Entry{
			Name: path.Join(BundleModulesDir, m.Name+m.Kind.Extension()),
			Data: []byte(m.Source),
		})
	}
	return entries
}

// WriteBundle writes the intermediate streams as a debug bundle.
func (a *Artifacts) WriteBundle(w io.WriteSeeker, opts ...archive.WriterOption) error {
	return archive.WriteBundle(w, a.BundleEntries(), opts...)
}
