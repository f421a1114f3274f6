package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/writer"
)

// addSinkFlags registers the flags that override the sink section.
func addSinkFlags(cmd *cobra.Command) {
	cmd.Flags().String("endpoint", "", "document endpoint, e.g. http://localhost:9200/logs/_doc")
	cmd.Flags().String("username", "", "basic auth username")
	cmd.Flags().String("password", "", "basic auth password")
	cmd.Flags().String("transport", "", "sink transport (http, elastic)")
}

// applySinkOverrides copies the sink flags that were set onto cfg.
func applySinkOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		cfg.Sink.Endpoint = v
	}
	if v, _ := cmd.Flags().GetString("username"); v != "" {
		cfg.Sink.Username = v
	}
	if v, _ := cmd.Flags().GetString("password"); v != "" {
		cfg.Sink.Password = v
	}
	if v, _ := cmd.Flags().GetString("transport"); v != "" {
		cfg.Sink.Transport = v
	}
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command, cfgFile string, overrides ...func(*cobra.Command, *config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	for _, apply := range overrides {
		apply(cmd, cfg)
	}
	return cfg, nil
}

// BuildSink creates the writer described by cfg.
func BuildSink(cfg config.SinkConfig) (*writer.Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []writer.Option{writer.WithTimeout(cfg.Timeout)}
	if cfg.Transport == config.TransportElastic {
		tp, err := writer.NewElasticTransport(cfg.Endpoint, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, writer.WithHTTPClient(tp))
	}

	return writer.New(cfg.Endpoint, cfg.Username, cfg.Password, opts...), nil
}
