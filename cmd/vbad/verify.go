package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/goopsie/vbamc/pkg/compiler"
	"github.com/goopsie/vbamc/pkg/config"
	"github.com/goopsie/vbamc/pkg/vba"
)

func (a *app) newVerifyCommand() *cobra.Command {
	var bundlePath string

	cmd := &cobra.Command{
		Use:   "verify <project definition> <vbaProject.bin>",
		Short: "Check a container against the project it was compiled from",
		Long: `Compile the project definition in memory and compare the module
table and every module's source with the container. Exits non-zero on the
first difference.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := config.Load(args[0])
			if err != nil {
				return err
			}
			project, err := def.Build()
			if err != nil {
				return err
			}
			opts, err := def.CompilerOptions()
			if err != nil {
				return err
			}

			artifacts, err := compiler.New(append(opts, compiler.WithLogger(a.logger))...).Build(project)
			if err != nil {
				return fmt.Errorf("compile %s: %w", args[0], err)
			}

			if bundlePath != "" {
				if err := writeBundle(artifacts, bundlePath); err != nil {
					return err
				}
				a.logger.Info("wrote debug bundle", "path", bundlePath)
			}

			c, err := openContainer(args[1])
			if err != nil {
				return err
			}
			if err := compare(artifacts, c); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d modules match\n", len(artifacts.Modules))
			return nil
		},
	}

	cmd.Flags().StringVar(&bundlePath, "bundle", "", "also write the compiled streams to a debug bundle")
	return cmd
}

func writeBundle(a *compiler.Artifacts, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	if err := a.WriteBundle(f); err != nil {
		f.Close()
		return fmt.Errorf("write bundle: %w", err)
	}
	return f.Close()
}

func compare(want *compiler.Artifacts, got *compiler.Container) error {
	modules := got.Info.Modules
	if len(modules) != len(want.Modules) {
		return fmt.Errorf("module count: container has %d, project has %d", len(modules), len(want.Modules))
	}

	for i, w := range want.Modules {
		m := modules[i]
		if m.Name != w.Name || m.Kind != w.Kind {
			return fmt.Errorf("module %d: container has %s %q, project has %s %q", i, m.Kind, m.Name, w.Kind, w.Name)
		}
		src, err := got.Source(m)
		if err != nil {
			return err
		}
		if src != w.Source {
			return fmt.Errorf("module %q: source differs", w.Name)
		}
	}

	names, err := got.ModuleNames()
	if err != nil {
		return err
	}
	wantNames, err := vba.ParseModuleNameTable(want.ProjectWm)
	if err != nil {
		return err
	}
	if !slices.Equal(names, wantNames) {
		return fmt.Errorf("PROJECTwm: container lists %v, project lists %v", names, wantNames)
	}
	return nil
}
