package config

import (
	"fmt"
	"net/url"
)

// Validate checks the settings needed to build a sink and a pipeline.
// The writer accepts any endpoint; Validate rejects those that can never be
// delivered to.
func (c *Config) Validate() error {
	if err := c.Sink.Validate(); err != nil {
		return err
	}

	if c.Pipeline.BufferedLines <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBufferSize, c.Pipeline.BufferedLines)
	}

	ing := c.Ingestors
	if !ing.Stdin.Enabled && !ing.File.Enabled && !ing.Journal.Enabled {
		return ErrNoIngestors
	}
	if ing.File.Enabled && len(ing.File.Paths) == 0 {
		return ErrNoFilePaths
	}

	return nil
}

// Validate checks the endpoint and transport of the sink.
func (s SinkConfig) Validate() error {
	if s.Endpoint == "" {
		return ErrNoEndpoint
	}

	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}

	switch s.Transport {
	case TransportHTTP, TransportElastic:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTransport, s.Transport)
	}

	return nil
}
