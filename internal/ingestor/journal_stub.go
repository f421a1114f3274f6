//go:build !linux || !cgo

package ingestor

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/model"
)

// JournalIngestor is unavailable without linux and cgo.
type JournalIngestor struct {
	cfg config.JournalIngestorConfig
}

// NewJournalIngestor creates a journal ingestor stub.
func NewJournalIngestor(cfg config.JournalIngestorConfig, _ *zap.SugaredLogger) *JournalIngestor {
	return &JournalIngestor{cfg: cfg}
}

// Name returns the ingestor identifier.
func (j *JournalIngestor) Name() string {
	return "journal"
}

// Start always fails.
func (j *JournalIngestor) Start(ctx context.Context, out chan<- *model.Record) error {
	defer close(out)
	return fmt.Errorf("journal ingestor requires linux with cgo (current OS: %s)", runtime.GOOS)
}
