package cli

import (
	"fmt"
	"io"
	"net/url"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/spf13/cobra"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
)

// NewPingCmd creates the ping command.
func NewPingCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the sink host answers the Elasticsearch info API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgFile, applySinkOverrides)
			if err != nil {
				return err
			}
			if err := cfg.Sink.Validate(); err != nil {
				return err
			}

			info, err := ping(cfg.Sink)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info)
			return nil
		},
	}

	addSinkFlags(cmd)
	return cmd
}

// ping queries the root of the sink host and returns the response body.
func ping(cfg config.SinkConfig) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint: %w", err)
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{u.Scheme + "://" + u.Host},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return "", fmt.Errorf("ping %s: %w", u.Host, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("reading info response: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("ping %s: %s", u.Host, res.Status())
	}
	return string(body), nil
}
