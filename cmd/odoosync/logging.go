package main

import (
	"fmt"
	"io"
	"time"

	"github.com/erauner12/odoosync/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setupLogging configures the global zerolog logger. Console output is the
// default; LOG_FILE adds a rotating JSON sink.
func setupLogging(cfg config.LogConfig, stderr io.Writer) (io.Closer, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Level, err)
		}
		if parsed != zerolog.NoLevel {
			level = parsed
		}
	}

	var console io.Writer
	switch cfg.Format {
	case "", "console":
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05"}
	case "json":
		console = stderr
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (want console or json)", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "odoosync").Logger()
	return closer, nil
}
