package config

import "errors"

var (
	ErrNoEndpoint        = errors.New("no sink endpoint configured")
	ErrInvalidEndpoint   = errors.New("invalid sink endpoint")
	ErrInvalidTransport  = errors.New("invalid sink transport")
	ErrInvalidBufferSize = errors.New("invalid pipeline buffer size")
	ErrNoIngestors       = errors.New("no ingestors enabled")
	ErrNoFilePaths       = errors.New("file ingestor enabled without paths")
)
