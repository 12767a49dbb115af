// Package cli implements the embersim command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"ember/internal/buildinfo"
	"ember/internal/logging"
)

var (
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for embersim.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "embersim",
		Short:   "embersim — host simulator for the EmberOS task-switching core",
		Long:    "embersim boots a plan of user programs and runs the trap/switch loop on a simulated user machine.",
		Version: buildinfo.Short(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.ParseLevel(flagLogLevel), flagLogFormat)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(newRunCmd())

	return root
}
