// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	zlsentry "github.com/archdx/zerolog-sentry"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where logs go.
type Config struct {
	Level  string
	Pretty bool

	// File enables a rolling log file when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// SentryDSN forwards error-level events to Sentry when non-empty.
	SentryDSN   string
	Environment string
}

// New returns a logger writing to stderr plus the optional sinks in cfg.
// The returned closer flushes and releases those sinks.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var console io.Writer = os.Stderr
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	var closers multiCloser

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, err
		}
		rolling := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    nonZero(cfg.MaxSizeMB, 100), // megabytes
			MaxBackups: nonZero(cfg.MaxBackups, 3),
			MaxAge:     nonZero(cfg.MaxAgeDays, 30), // days
		}
		writers = append(writers, rolling)
		closers = append(closers, rolling)
	}

	if cfg.SentryDSN != "" {
		sentry, err := zlsentry.New(cfg.SentryDSN,
			zlsentry.WithEnvironment(cfg.Environment),
			zlsentry.WithLevels(zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel),
		)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		writers = append(writers, sentry)
		closers = append(closers, sentry)
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if l, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = l
		}
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return log, closers, nil
}

type multiCloser []io.Closer

func (mc multiCloser) Close() error {
	var first error
	for _, c := range mc {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func nonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
