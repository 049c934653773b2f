package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goopsie/vbamc/pkg/archive"
)

func (a *app) newBundleCommand() *cobra.Command {
	var showEntry string

	cmd := &cobra.Command{
		Use:   "bundle <file.vbab>",
		Short: "List the entries of a debug bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open bundle: %w", err)
			}
			defer f.Close()

			entries, err := archive.ReadBundle(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			if showEntry != "" {
				for _, e := range entries {
					if e.Name == showEntry {
						_, err := cmd.OutOrStdout().Write(e.Data)
						return err
					}
				}
				return fmt.Errorf("bundle has no entry %q", showEntry)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ENTRY\tSIZE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%d\n", e.Name, len(e.Data))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&showEntry, "show", "", "print the content of one entry")
	return cmd
}
