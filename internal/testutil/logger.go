package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger creates a logger that discards output, suitable for tests.
func NewTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// NewObservedLogger creates a debug-level logger whose entries can be inspected.
func NewObservedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}
