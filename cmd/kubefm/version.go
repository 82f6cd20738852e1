package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/caosd-group/kubefm/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(*cobra.Command, []string) {
		version.Fprint(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
