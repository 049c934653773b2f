// Command vbad inspects compiled VBA project containers: it lists and
// extracts modules, prints the decoded dir stream and verifies a container
// against a project definition.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	logger  *log.Logger
	verbose bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		logger: log.NewWithOptions(stderr, log.Options{Prefix: "vbad"}),
	}

	root := &cobra.Command{
		Use:           "vbad",
		Short:         "Inspect compiled VBA project containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.verbose {
				a.logger.SetLevel(log.DebugLevel)
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.newModulesCommand(),
		a.newExtractCommand(),
		a.newDirCommand(),
		a.newVerifyCommand(),
		a.newBundleCommand(),
	)
	return root
}
