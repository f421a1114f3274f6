// Package pipeline drives a sink from the configured record sources.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/ingestor"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/model"
)

// ErrNoIngestors is returned when the config enables no record source.
var ErrNoIngestors = errors.New("no ingestors enabled")

// ingestorStopTimeout bounds how long Reconfigure waits for a removed ingestor.
var ingestorStopTimeout = 5 * time.Second

// managedIngestor wraps an ingestor with its lifecycle management.
type managedIngestor struct {
	ingestor ingestor.Ingestor
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStdin makes the stdin ingestor read from r.
func WithStdin(r io.Reader) Option {
	return func(p *Pipeline) {
		p.stdin = r
	}
}

// Pipeline feeds every record from its ingestors into one sink through a
// NonBlocking queue.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	front  *NonBlocking
	stdin  io.Reader

	reconfMu sync.Mutex

	mu        sync.Mutex
	ingestors map[string]*managedIngestor
	// group and runCtx are set while Run accepts new ingestors.
	group         *errgroup.Group
	runCtx        context.Context
	active        int
	reconfiguring bool
	idle          chan struct{}
}

// New creates a pipeline delivering to sink.
func New(cfg *config.Config, sink io.Writer, log *zap.SugaredLogger, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:       cfg,
		logger:    log.Named("Pipeline"),
		ingestors: make(map[string]*managedIngestor),
		idle:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, name := range EnabledIngestors(cfg) {
		p.ingestors[name] = &managedIngestor{
			ingestor: p.newIngestor(name, cfg),
			done:     make(chan struct{}),
		}
	}
	if len(p.ingestors) == 0 {
		return nil, ErrNoIngestors
	}

	p.front = NewNonBlocking(sink, NonBlockingConfig{
		BufferedLines: cfg.Pipeline.BufferedLines,
		Lossy:         cfg.Pipeline.Lossy,
	}, p.logger)

	p.logger.Debugf("built %d ingestors", len(p.ingestors))
	return p, nil
}

// EnabledIngestors returns the sorted names of the ingestors cfg enables.
func EnabledIngestors(cfg *config.Config) []string {
	var names []string
	if cfg.Ingestors.Stdin.Enabled {
		names = append(names, "stdin")
	}
	if cfg.Ingestors.File.Enabled {
		names = append(names, "file")
	}
	if cfg.Ingestors.Journal.Enabled {
		names = append(names, "journal")
	}
	sort.Strings(names)
	return names
}

func (p *Pipeline) newIngestor(name string, cfg *config.Config) ingestor.Ingestor {
	switch name {
	case "stdin":
		if p.stdin == nil {
			return ingestor.NewStdinIngestor(cfg.Ingestors.Stdin, p.logger)
		}
		return ingestor.NewReaderIngestor(cfg.Ingestors.Stdin, p.stdin, p.logger)
	case "file":
		return ingestor.NewFileIngestor(cfg.Ingestors.File, p.logger)
	case "journal":
		return ingestor.NewJournalIngestor(cfg.Ingestors.Journal, p.logger)
	}
	return nil
}

// ingestorConfig returns the section of cfg that configures name.
func ingestorConfig(name string, cfg *config.Config) any {
	switch name {
	case "stdin":
		return cfg.Ingestors.Stdin
	case "file":
		return cfg.Ingestors.File
	case "journal":
		return cfg.Ingestors.Journal
	}
	return nil
}

// Run starts every ingestor and blocks until they have all finished or ctx is
// cancelled, then drains the queue within the shutdown timeout. Ingestors
// added by Reconfigure while Run is active count as well. The first ingestor
// error stops the others and is returned. Run must be called at most once.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	p.mu.Lock()
	p.group = g
	p.runCtx = gCtx
	g.Go(func() error {
		p.awaitIdle(gCtx)
		return nil
	})
	for name, mi := range p.ingestors {
		p.startIngestor(name, mi)
	}
	p.mu.Unlock()

	err := g.Wait()
	p.shutdown()
	return err
}

// awaitIdle keeps the group open until no ingestor is running outside a
// Reconfigure, or ctx is done. Once it returns no ingestor is started again.
func (p *Pipeline) awaitIdle(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
		case <-p.idle:
			p.mu.Lock()
			busy := p.active > 0 || p.reconfiguring
			p.mu.Unlock()
			if busy {
				continue
			}
		}

		p.mu.Lock()
		p.runCtx = nil
		p.mu.Unlock()
		return
	}
}

// signalIdle wakes awaitIdle. Caller must hold p.mu.
func (p *Pipeline) signalIdle() {
	if p.active > 0 || p.reconfiguring {
		return
	}
	select {
	case p.idle <- struct{}{}:
	default:
	}
}

// startIngestor runs mi in the group. Caller must hold p.mu and p.runCtx must
// be non-nil, which keeps awaitIdle and therefore the group alive.
func (p *Pipeline) startIngestor(name string, mi *managedIngestor) {
	ctx, cancel := context.WithCancel(p.runCtx)
	mi.cancel = cancel
	p.active++

	p.group.Go(func() error {
		defer func() {
			p.mu.Lock()
			p.active--
			p.signalIdle()
			p.mu.Unlock()
		}()
		defer close(mi.done)
		defer cancel()

		p.logger.Debugf("started ingestor: %s", name)
		return p.runIngestor(ctx, name, mi)
	})
}

// runIngestor pumps records from one ingestor into the queue.
func (p *Pipeline) runIngestor(ctx context.Context, name string, mi *managedIngestor) error {
	records := make(chan *model.Record, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for rec := range records {
			if _, err := p.front.Write(rec.Raw); err != nil {
				p.logger.Debugf("queue error: source=%s, age=%s, error=%v", rec.Source, time.Since(rec.Timestamp), err)
			}
		}
	}()

	err := mi.ingestor.Start(ctx, records)
	wg.Wait()

	p.logger.Debugf("ingestor stopped: name=%s", name)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ingestor %s: %w", name, err)
	}
	return nil
}

// shutdown drains the queue into the sink.
func (p *Pipeline) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Pipeline.ShutdownTimeout)
	defer cancel()

	if err := p.front.Close(ctx); err != nil {
		p.logger.Warnf("queue not drained before shutdown timeout: %v", err)
	}

	s := p.front.Stats()
	p.logger.Infof("pipeline stopped: delivered=%d, failed=%d, dropped=%d", s.Delivered, s.Failed, s.Dropped)
}

// Reconfigure applies newCfg. A non-nil sink replaces the current one for
// every record not yet delivered. Ingestors are started, stopped or restarted
// to match newCfg; a stopped ingestor gets ingestorStopTimeout to finish
// before its replacement starts.
func (p *Pipeline) Reconfigure(newCfg *config.Config, sink io.Writer) error {
	p.reconfMu.Lock()
	defer p.reconfMu.Unlock()

	if sink != nil {
		p.front.SetSink(sink)
		p.logger.Info("sink replaced")
	}

	wanted := make(map[string]bool)
	for _, name := range EnabledIngestors(newCfg) {
		wanted[name] = true
	}

	p.mu.Lock()
	oldCfg := p.cfg
	p.cfg = newCfg
	p.reconfiguring = true

	stopping := make(map[string]*managedIngestor)
	for name, mi := range p.ingestors {
		changed := !reflect.DeepEqual(ingestorConfig(name, oldCfg), ingestorConfig(name, newCfg))
		if !wanted[name] || changed {
			delete(p.ingestors, name)
			if mi.cancel != nil {
				mi.cancel()
				stopping[name] = mi
			}
		}
	}
	p.mu.Unlock()

	// Wait outside the lock so a slow ingestor cannot stall IngestorCount or Run.
	for name, mi := range stopping {
		p.awaitStop(name, mi)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for name := range wanted {
		if _, running := p.ingestors[name]; !running {
			p.addIngestor(name, newCfg)
		}
	}
	p.reconfiguring = false
	p.signalIdle()

	p.logger.Infof("configuration applied: ingestors=%d", len(p.ingestors))
	return nil
}

// addIngestor registers name and starts it if the pipeline is running.
// Caller must hold p.mu.
func (p *Pipeline) addIngestor(name string, cfg *config.Config) {
	mi := &managedIngestor{
		ingestor: p.newIngestor(name, cfg),
		done:     make(chan struct{}),
	}
	p.ingestors[name] = mi

	if p.runCtx == nil {
		return
	}
	p.startIngestor(name, mi)
	p.logger.Infof("ingestor added: %s", name)
}

// awaitStop waits for a cancelled ingestor to finish, up to ingestorStopTimeout.
func (p *Pipeline) awaitStop(name string, mi *managedIngestor) {
	timer := time.NewTimer(ingestorStopTimeout)
	defer timer.Stop()

	select {
	case <-mi.done:
		p.logger.Infof("ingestor removed: %s", name)
	case <-timer.C:
		p.logger.Warnf("ingestor %s did not stop within %s, continuing", name, ingestorStopTimeout)
	}
}

// IngestorCount returns the number of managed ingestors.
func (p *Pipeline) IngestorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ingestors)
}

// Stats returns the delivery counters of the queue.
func (p *Pipeline) Stats() Stats {
	return p.front.Stats()
}
