package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/pipeline"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/writer"
)

// NewRunCmd creates the run command.
func NewRunCmd(cfgFile, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start shipping records to the sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, *cfgFile, *logLevel)
		},
	}

	addSinkFlags(cmd)

	// Ingestor flags
	cmd.Flags().Bool("stdin", false, "enable stdin ingestor")
	cmd.Flags().StringSlice("file", nil, "file paths to tail (enables file ingestor)")
	cmd.Flags().Bool("journal", false, "enable systemd journal ingestor")

	// Hot-reload flag
	cmd.Flags().Bool("hot-reload", true, "enable hot-reload of config file")

	return cmd
}

// runner owns the state shared by the reload paths.
type runner struct {
	cmd      *cobra.Command
	cfgFile  string
	console  *zap.SugaredLogger
	log      *zap.SugaredLogger
	pipeline *pipeline.Pipeline
	shipper  *pipeline.NonBlocking

	mu      sync.Mutex
	sink    *writer.Writer
	sinkCfg config.SinkConfig
}

func runPipeline(cmd *cobra.Command, cfgFile, logLevel string) error {
	cfg, err := loadConfig(cmd, cfgFile, applyRunOverrides)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	console := SetupLogging(level, cfg.Log)
	defer func() { _ = console.Sync() }()

	sink, err := BuildSink(cfg.Sink)
	if err != nil {
		return fmt.Errorf("building sink: %w", err)
	}

	r := &runner{cmd: cmd, cfgFile: cfgFile, console: console, log: console, sink: sink, sinkCfg: cfg.Sink}

	if cfg.Log.Ship {
		// The shipper reports its own failures on the console only.
		r.shipper = pipeline.NewNonBlocking(sink, pipeline.NonBlockingConfig{
			BufferedLines: cfg.Pipeline.BufferedLines,
			Lossy:         true,
		}, console)
		r.log = ShipLogs(console, r.shipper, level)
		defer r.closeShipper(cfg)
	}

	p, err := pipeline.New(cfg, sink, r.log)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}
	r.pipeline = p

	r.log.Infof("starting elastic-log-writer: endpoint=%s, transport=%s, ingestors=%v",
		sink.Endpoint(), cfg.Sink.Transport, pipeline.EnabledIngestors(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	if hotReload, _ := cmd.Flags().GetBool("hot-reload"); cfgFile != "" && hotReload {
		r.startConfigWatcher(ctx)
	}

	go r.handleSignals(ctx, cancel, sigChan)

	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pipeline error: %w", err)
	}

	r.log.Info("elastic-log-writer stopped")
	return nil
}

func (r *runner) startConfigWatcher(ctx context.Context) {
	watcher := config.NewWatcher(r.cfgFile, r.log, config.WithOverride(func(cfg *config.Config) {
		applyRunOverrides(r.cmd, cfg)
	}))
	if err := watcher.Start(ctx); err != nil {
		r.log.Warnf("failed to start config watcher: %v", err)
		return
	}

	r.log.Infof("hot-reload enabled: config=%s", r.cfgFile)

	go func() {
		for {
			select {
			case newCfg := <-watcher.Changes():
				r.apply(newCfg)
			case err := <-watcher.Errors():
				r.log.Errorf("config watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *runner) handleSignals(ctx context.Context, cancel context.CancelFunc, sigChan <-chan os.Signal) {
	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				r.log.Info("received SIGHUP, reloading config")
				newCfg, err := loadConfig(r.cmd, r.cfgFile, applyRunOverrides)
				if err != nil {
					r.log.Errorf("failed to reload config: %v", err)
					continue
				}
				if err := newCfg.Validate(); err != nil {
					r.log.Errorf("reloaded config rejected: %v", err)
					continue
				}
				r.apply(newCfg)
			case syscall.SIGINT, syscall.SIGTERM:
				r.log.Infof("received shutdown signal: %v", sig)
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// apply reconfigures the pipeline, rebuilding the sink only when its section
// changed. Reloads arrive from the watcher and SIGHUP goroutines.
func (r *runner) apply(newCfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		sink io.Writer
		old  *writer.Writer
	)
	if newCfg.Sink != r.sinkCfg {
		w, err := BuildSink(newCfg.Sink)
		if err != nil {
			r.log.Errorf("reconfigure failed: %v", err)
			return
		}
		sink, old = w, r.sink
		r.sink, r.sinkCfg = w, newCfg.Sink
		if r.shipper != nil {
			r.shipper.SetSink(w)
		}
	}

	if err := r.pipeline.Reconfigure(newCfg, sink); err != nil {
		r.log.Errorf("reconfigure failed: %v", err)
	}
	if old != nil {
		// A record already taken by a queue worker may still be in flight on
		// old; only its idle connections are released.
		old.CloseIdleConnections()
	}
}

func (r *runner) closeShipper(cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.ShutdownTimeout)
	defer cancel()
	if err := r.shipper.Close(ctx); err != nil {
		r.console.Warnf("shipped logs not drained: %v", err)
	}
}

func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) {
	applySinkOverrides(cmd, cfg)

	if v, _ := cmd.Flags().GetBool("stdin"); v {
		cfg.Ingestors.Stdin.Enabled = true
	}
	if v, _ := cmd.Flags().GetBool("journal"); v {
		cfg.Ingestors.Journal.Enabled = true
	}
	if files, _ := cmd.Flags().GetStringSlice("file"); len(files) > 0 {
		cfg.Ingestors.File.Enabled = true
		cfg.Ingestors.File.Paths = files
	}
}
