package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func (a *app) newExtractCommand() *cobra.Command {
	var (
		outputDir      string
		forceOverwrite bool
	)

	cmd := &cobra.Command{
		Use:   "extract <vbaProject.bin>",
		Short: "Write each module's source to a file",
		Long: `Write each module's source, attribute header included, to
<output>/<Name>.bas for standard modules, .cls for class modules and
.doccls for document modules.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(args[0])
			if err != nil {
				return err
			}
			modules, err := c.Extract()
			if err != nil {
				return err
			}

			if err := prepareOutputDir(outputDir, forceOverwrite); err != nil {
				return err
			}

			for _, m := range modules {
				path := filepath.Join(outputDir, m.Name+m.Kind.Extension())
				if err := os.WriteFile(path, []byte(m.Source), 0o644); err != nil {
					return fmt.Errorf("write module %q: %w", m.Name, err)
				}
				a.logger.Debug("extracted module", "name", m.Name, "path", path)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d modules to %s\n", len(modules), outputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory")
	cmd.Flags().BoolVar(&forceOverwrite, "force", false, "allow a non-empty output directory")
	return cmd
}

func prepareOutputDir(dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if !force {
		empty, err := isDirEmpty(dir)
		if err != nil {
			return fmt.Errorf("check output directory: %w", err)
		}
		if !empty {
			return fmt.Errorf("output directory is not empty (use --force to override)")
		}
	}

	return nil
}

func isDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	return false, err
}
