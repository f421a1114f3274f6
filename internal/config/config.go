// Package config provides configuration loading with layered overrides.
// Load order: defaults -> YAML file -> environment variables.
package config

import (
	"os"
	"time"

	configloader "github.com/GabrielNunesIT/go-libs/config-loader"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "ELASTIC_LOG_WRITER_"

// Supported sink transports.
const (
	TransportHTTP    = "http"
	TransportElastic = "elastic"
)

// Config is the root configuration structure for the log writer.
type Config struct {
	LogLevel  string         `koanf:"loglevel" yaml:"log_level" json:"log_level"`
	Log       LogConfig      `koanf:"log"`
	Sink      SinkConfig     `koanf:"sink"`
	Pipeline  PipelineConfig `koanf:"pipeline"`
	Ingestors IngestorConfig `koanf:"ingestors"`
}

// LogConfig controls where the tool's own logs go.
type LogConfig struct {
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"maxsizemb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `koanf:"maxbackups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `koanf:"maxagedays" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `koanf:"compress"`
	// Ship also sends the tool's own logs to the sink as JSON documents.
	Ship bool `koanf:"ship"`
}

// SinkConfig configures the backend documents are posted to.
type SinkConfig struct {
	Endpoint  string        `koanf:"endpoint"`
	Username  string        `koanf:"username"`
	Password  string        `koanf:"password"`
	Timeout   time.Duration `koanf:"timeout"`
	Transport string        `koanf:"transport"` // "http" or "elastic"
}

// PipelineConfig controls the non-blocking front of the sink.
type PipelineConfig struct {
	BufferedLines   int           `koanf:"bufferedlines" yaml:"buffered_lines" json:"buffered_lines"`
	Lossy           bool          `koanf:"lossy"`
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// IngestorConfig holds configuration for all record sources.
type IngestorConfig struct {
	Stdin   StdinIngestorConfig   `koanf:"stdin"`
	File    FileIngestorConfig    `koanf:"file"`
	Journal JournalIngestorConfig `koanf:"journal"`
}

// StdinIngestorConfig configures the stdin ingestor.
type StdinIngestorConfig struct {
	Enabled bool `koanf:"enabled"`
}

// FileIngestorConfig configures the file tailing ingestor.
type FileIngestorConfig struct {
	Enabled bool     `koanf:"enabled"`
	Paths   []string `koanf:"paths"`
	Exclude []string `koanf:"exclude"`
}

// JournalIngestorConfig configures the systemd journal ingestor.
type JournalIngestorConfig struct {
	Enabled bool     `koanf:"enabled"`
	Units   []string `koanf:"units"`
}

// defaults returns the default configuration values.
func defaults() Config {
	return Config{
		LogLevel: "info",
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Sink: SinkConfig{
			Timeout:   30 * time.Second,
			Transport: TransportHTTP,
		},
		Pipeline: PipelineConfig{
			BufferedLines:   2000,
			Lossy:           true,
			ShutdownTimeout: 30 * time.Second,
		},
		Ingestors: IngestorConfig{
			Stdin: StdinIngestorConfig{Enabled: false},
		},
	}
}

// Load reads configuration from all sources with proper override order.
// Order: defaults -> config file -> environment variables.
func Load(configPath string) (*Config, error) {
	opts := []configloader.Option[Config]{
		configloader.WithDefaults[Config](defaults()),
	}

	if configPath != "" {
		opts = append(opts, configloader.WithFile[Config](configPath))
	} else {
		for _, path := range []string{"./config.yaml", "/etc/elastic-log-writer/config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				opts = append(opts, configloader.WithFile[Config](path))
				break
			}
		}
	}

	opts = append(opts, configloader.WithEnv[Config](EnvPrefix))

	loader := configloader.NewConfigLoader[Config](opts...)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
