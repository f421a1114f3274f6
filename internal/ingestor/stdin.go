package ingestor

import (
	"bufio"
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/model"
)

// StdinIngestor turns every non-empty line of standard input into a record.
type StdinIngestor struct {
	cfg    config.StdinIngestorConfig
	reader io.Reader
	logger *zap.SugaredLogger
}

// NewStdinIngestor creates a new stdin ingestor.
func NewStdinIngestor(cfg config.StdinIngestorConfig, log *zap.SugaredLogger) *StdinIngestor {
	return NewReaderIngestor(cfg, os.Stdin, log)
}

// NewReaderIngestor creates a stdin ingestor reading from r instead of os.Stdin.
func NewReaderIngestor(cfg config.StdinIngestorConfig, r io.Reader, log *zap.SugaredLogger) *StdinIngestor {
	return &StdinIngestor{
		cfg:    cfg,
		reader: r,
		logger: log.Named("StdinIngestor"),
	}
}

// Name returns the ingestor identifier.
func (s *StdinIngestor) Name() string {
	return "stdin"
}

// Start reads lines until EOF or cancellation. Cancellation returns without
// waiting for a pending read; that read is abandoned.
func (s *StdinIngestor) Start(ctx context.Context, out chan<- *model.Record) error {
	defer close(out)

	s.logger.Info("reading records from stdin")

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(s.reader)
		scanner.Buffer(make([]byte, 64*1024), maxRecordSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			// The scanner reuses its buffer.
			raw := make([]byte, len(line))
			copy(raw, line)

			select {
			case lines <- raw:
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	count := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Debugf("stdin ingestor stopped: records=%d", count)
			return ctx.Err()

		case raw, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					s.logger.Errorf("stdin read error: %v", err)
					return err
				}
				s.logger.Infof("EOF reached: records=%d", count)
				return nil
			}
			if err := send(ctx, out, model.NewRecord(s.Name(), raw)); err != nil {
				s.logger.Debugf("stdin ingestor stopped: records=%d", count)
				return err
			}
			count++
		}
	}
}
