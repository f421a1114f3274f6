// Package ingestor defines the interface and implementations for record sources.
package ingestor

import (
	"context"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/model"
)

// maxRecordSize bounds a single line read by the line-oriented ingestors.
const maxRecordSize = 1024 * 1024

// Ingestor defines the contract for record sources.
// Each ingestor runs in its own goroutine and pushes records to the output channel.
type Ingestor interface {
	// Start reads records and sends them to out until ctx is cancelled, the
	// source is exhausted, or an unrecoverable error occurs.
	// The implementation must close out when done.
	Start(ctx context.Context, out chan<- *model.Record) error

	// Name returns a unique identifier for this ingestor instance.
	Name() string
}

// send delivers rec unless ctx is done first.
func send(ctx context.Context, out chan<- *model.Record, rec *model.Record) error {
	select {
	case out <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
