//go:build linux && cgo

package ingestor

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
	"go.uber.org/zap"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/model"
)

// JournalIngestor follows the systemd journal and emits each new entry as a
// JSON document.
type JournalIngestor struct {
	cfg    config.JournalIngestorConfig
	logger *zap.SugaredLogger
}

// NewJournalIngestor creates a new systemd journal ingestor.
func NewJournalIngestor(cfg config.JournalIngestorConfig, log *zap.SugaredLogger) *JournalIngestor {
	return &JournalIngestor{
		cfg:    cfg,
		logger: log.Named("JournalIngestor"),
	}
}

// Name returns the ingestor identifier.
func (j *JournalIngestor) Name() string {
	return "journal"
}

// Start follows the journal tail until ctx is done.
func (j *JournalIngestor) Start(ctx context.Context, out chan<- *model.Record) error {
	defer close(out)

	journal, err := sdjournal.NewJournal()
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	for i, unit := range j.cfg.Units {
		if i > 0 {
			if err := journal.AddDisjunction(); err != nil {
				return fmt.Errorf("adding unit disjunction: %w", err)
			}
		}
		if err := journal.AddMatch(sdjournal.SD_JOURNAL_FIELD_SYSTEMD_UNIT + "=" + unit); err != nil {
			return fmt.Errorf("adding unit filter %q: %w", unit, err)
		}
	}

	if err := journal.SeekTail(); err != nil {
		return fmt.Errorf("seeking to journal tail: %w", err)
	}
	// SeekTail points past the last entry; step back so Next lands on new ones.
	if _, err := journal.Previous(); err != nil {
		return fmt.Errorf("moving to previous entry: %w", err)
	}

	j.logger.Infof("following journal: units=%v", j.cfg.Units)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		for {
			n, err := journal.Next()
			if err != nil {
				return fmt.Errorf("reading next entry: %w", err)
			}
			if n == 0 {
				break
			}

			entry, err := journal.GetEntry()
			if err != nil {
				j.logger.Debugf("skipping unreadable entry: %v", err)
				continue
			}
			raw, err := renderJournalEntry(entry.Fields, time.UnixMicro(int64(entry.RealtimeTimestamp)))
			if err != nil {
				j.logger.Debugf("skipping entry: %v", err)
				continue
			}
			if err := send(ctx, out, model.NewRecord(j.Name(), raw)); err != nil {
				return err
			}
		}

		// Bounded wait so cancellation is observed.
		journal.Wait(time.Second)
	}
}
