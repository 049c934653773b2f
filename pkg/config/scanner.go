package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goopsie/vbamc/pkg/vba"
)

// ScanModules walks dir and returns a ModuleSpec for every file with a module
// extension (.bas, .cls, .doccls), in lexical path order. Other files are
// skipped.
func ScanModules(dir string) ([]ModuleSpec, error) {
	var specs []ModuleSpec

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		kind, ok := vba.KindFromExtension(filepath.Ext(path))
		if !ok {
			return nil // Skip
		}

		if !info.Mode().IsRegular() {
			return fmt.Errorf("module %s is not a regular file", path)
		}

		specs = append(specs, ModuleSpec{
			Path: path,
			Kind: kind.String(),
		})
		return nil
	})

	if err != nil {
		return nil, err
	}

	return specs, nil
}
