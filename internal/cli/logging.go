package cli

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"github.com/natefinch/lumberjack"

	"github.com/GabrielNunesIT/elastic-log-writer/internal/config"
	"github.com/GabrielNunesIT/elastic-log-writer/internal/zapsink"
)

// ParseLevel maps a config log level to a zap level. Unknown names mean info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetupLogging creates a console logger on stderr with the specified level,
// teed into a rotating file when cfg.File is set.
// Returns the configured logger for dependency injection.
func SetupLogging(level string, cfg config.LogConfig) *zap.SugaredLogger {
	lvl := ParseLevel(level)

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), lvl),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rotator), lvl))
	}

	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

// ShipLogs returns log with every entry at or above level also written to w
// as a JSON document.
func ShipLogs(log *zap.SugaredLogger, w zapcore.WriteSyncer, level string) *zap.SugaredLogger {
	shipped := zapsink.NewCore(w, ParseLevel(level))
	return log.Desugar().WithOptions(
		zap.AddCaller(),
		zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, shipped)
		}),
	).Sugar()
}
