package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/kbagent/internal/config"
)

// Execute wires commands and runs Cobra. It exits with status 1 when the
// command fails.
func Execute(build BuildInfo, cfg config.Config, cfgErr error) {
	os.Exit(run(NewRootCmd(build, cfg, cfgErr), os.Stderr))
}

func run(root *cobra.Command, stderr io.Writer) int {
	if err := root.Execute(); err != nil {
		handleError(stderr, err)
		return 1
	}
	return 0
}
