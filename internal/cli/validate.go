package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/pipeline"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration valid:\n")
			fmt.Fprintf(out, "  Endpoint:  %s (%s)\n", cfg.Sink.Endpoint, cfg.Sink.Transport)
			fmt.Fprintf(out, "  Ingestors: %v\n", pipeline.EnabledIngestors(cfg))
			fmt.Fprintf(out, "  Queue:     %d lines, lossy=%t\n", cfg.Pipeline.BufferedLines, cfg.Pipeline.Lossy)
			return nil
		},
	}
}
