// Package model defines the record type passed from sources to the sink.
package model

import (
	"time"
)

// Record is one already-formatted log record.
type Record struct {
	// Timestamp is when the record was read from its source.
	Timestamp time.Time

	// Source identifies which ingestor produced the record.
	Source string

	// Raw is the document body shipped to the backend, byte for byte.
	Raw []byte
}

// NewRecord creates a Record stamped with the current time.
func NewRecord(source string, raw []byte) *Record {
	return &Record{
		Timestamp: time.Now(),
		Source:    source,
		Raw:       raw,
	}
}
