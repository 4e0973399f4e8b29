// Package logger builds the service zap logger: console output, plus an
// optional rotated file output.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction. The zero value logs Info and
// above to stdout.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// JSON switches the console encoder from human-readable to JSON.
	JSON bool

	// FilePath enables an additional rotated file output when set.
	FilePath string

	// Rotation settings for the file output. Zero values fall back to
	// lumberjack defaults.
	FileMaxSizeMB  int
	FileMaxAgeDays int
	FileMaxBackups int
}

// New constructs the logger. The caller owns Sync on shutdown.
func New(opts Options) *zap.Logger {
	level := parseLevel(opts.Level)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(opts.JSON), zapcore.Lock(os.Stdout), level),
	}

	if opts.FilePath != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.FileMaxSizeMB,
			MaxAge:     opts.FileMaxAgeDays,
			MaxBackups: opts.FileMaxBackups,
		})
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, fileWriter, level))
	}

	core := cores[0]
	if len(cores) > 1 {
		core = zapcore.NewTee(cores...)
	}

	return zap.New(core)
}

// FromEnv builds the logger from EMBED_LOG_LEVEL and EMBED_LOG_FILE.
func FromEnv() *zap.Logger {
	return New(Options{
		Level:    os.Getenv("EMBED_LOG_LEVEL"),
		FilePath: os.Getenv("EMBED_LOG_FILE"),
	})
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func consoleEncoder(json bool) zapcore.Encoder {
	if json {
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}
