package cli

import (
	"github.com/spf13/cobra"
)

// Execute builds and runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd assembles the command tree.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:   "elastic-log-writer",
		Short: "Ship JSON log records to an Elasticsearch-compatible HTTP endpoint",
		Long: `elastic-log-writer posts every log record it reads as one JSON document
to a fixed HTTP endpoint (typically <host>/<index>/_doc) with basic auth.

Records come from stdin, tailed files or the systemd journal. Delivery runs
behind a bounded, optionally lossy queue so slow backends never stall sources.

Hot-reload: When a config file is specified, changes are automatically applied
without requiring a restart.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")

	rootCmd.AddCommand(
		NewRunCmd(&cfgFile, &logLevel),
		NewSendCmd(&cfgFile),
		NewPingCmd(&cfgFile),
		NewValidateCmd(&cfgFile),
		NewVersionCmd(),
	)

	return rootCmd
}
