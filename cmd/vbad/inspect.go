package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goopsie/vbamc/pkg/compiler"
)

func openContainer(path string) (*compiler.Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read container: %w", err)
	}
	c, err := compiler.Open(data)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return c, nil
}

func (a *app) newModulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules <vbaProject.bin>",
		Short: "List module names, kinds and source offsets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tOFFSET")
			for _, m := range c.Modules() {
				fmt.Fprintf(w, "%s\t%s\t%d\n", m.Name, m.Kind, m.Offset)
			}
			return w.Flush()
		},
	}
}

func (a *app) newDirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dir <vbaProject.bin>",
		Short: "Print the decoded project information and references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(args[0])
			if err != nil {
				return err
			}
			info := c.Info
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Name:        %s\n", info.Name)
			fmt.Fprintf(out, "SysKind:     %s\n", info.SysKind)
			fmt.Fprintf(out, "CodePage:    %d\n", info.CodePage)
			fmt.Fprintf(out, "LCID:        0x%04X\n", info.LCID)
			fmt.Fprintf(out, "Version:     0x%08X.%d\n", info.Version.Major, info.Version.Minor)
			if info.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", info.Description)
			}
			if info.HelpFile != "" {
				fmt.Fprintf(out, "HelpFile:    %s\n", info.HelpFile)
			}
			if info.Constants != "" {
				fmt.Fprintf(out, "Constants:   %s\n", info.Constants)
			}

			props, err := c.Project()
			if err != nil {
				return err
			}
			visible, err := props.Visible()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "ID:          %s\n", props.ID)
			fmt.Fprintf(out, "Visible:     %t\n", visible)

			fmt.Fprintf(out, "\nReferences (%d):\n", len(info.References))
			for _, ref := range info.References {
				fmt.Fprintf(out, "  %-10s %-10s %s\n", ref.Name, ref.Kind, ref.Libid)
			}

			fmt.Fprintf(out, "\nModules (%d):\n", len(info.Modules))
			for _, m := range info.Modules {
				flags := ""
				if m.Private {
					flags += " private"
				}
				if m.ReadOnly {
					flags += " readonly"
				}
				fmt.Fprintf(out, "  %-20s %-8s offset=%d%s\n", m.Name, m.Kind, m.Offset, flags)
			}
			return nil
		},
	}
}
