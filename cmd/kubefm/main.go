// Command kubefm builds feature models from schema definitions and
// validates configuration corpora against them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/caosd-group/kubefm/internal/config"
	"github.com/caosd-group/kubefm/internal/logging"
)

var (
	configPath string
	logLevel   = logging.LevelInfo

	log *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:           "kubefm",
	Short:         "Feature models from configuration schemas",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		log = logging.NewLogger(logging.Config{Level: logLevel})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "kubefm.yaml", "config file")
	rootCmd.PersistentFlags().Var(
		enumflag.New(&logLevel, "log-level", map[logging.Level][]string{
			logging.LevelDebug: {"debug"},
			logging.LevelInfo:  {"info"},
			logging.LevelWarn:  {"warn", "warning"},
			logging.LevelError: {"error"},
		}, enumflag.EnumCaseInsensitive),
		"log-level", "log level (debug, info, warn, error)")
}

func loadConfig() (*config.Root, error) {
	return config.ParseFile(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
