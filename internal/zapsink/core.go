// Package zapsink encodes zap entries as JSON documents for a record sink.
package zapsink

import (
	"bytes"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EncoderConfig returns the field layout of every shipped document.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "@timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// core writes one JSON document per entry to w.
type core struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
	out zapcore.WriteSyncer
}

// NewCore returns a core that hands each enabled entry to w as a single JSON
// document without a trailing newline.
func NewCore(w zapcore.WriteSyncer, level zapcore.LevelEnabler) zapcore.Core {
	return &core{
		LevelEnabler: level,
		enc:          zapcore.NewJSONEncoder(EncoderConfig()),
		out:          w,
	}
}

// NewLogger builds a logger on top of NewCore with caller annotation.
func NewLogger(w zapcore.WriteSyncer, level zapcore.LevelEnabler) *zap.Logger {
	return zap.New(NewCore(w, level), zap.AddCaller())
}

func (c *core) With(fields []zapcore.Field) zapcore.Core {
	clone := &core{
		LevelEnabler: c.LevelEnabler,
		enc:          c.enc.Clone(),
		out:          c.out,
	}
	for _, f := range fields {
		f.AddTo(clone.enc)
	}
	return clone
}

func (c *core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	defer buf.Free()

	doc := bytes.TrimSuffix(buf.Bytes(), []byte(zapcore.DefaultLineEnding))
	if _, err := c.out.Write(doc); err != nil {
		return err
	}
	if ent.Level > zapcore.ErrorLevel {
		// Panic and fatal entries terminate the process.
		return c.out.Sync()
	}
	return nil
}

func (c *core) Sync() error {
	return c.out.Sync()
}
