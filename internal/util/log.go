package util

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerConfig mirrors config.Logger so util does not import config.
type LoggerConfig struct {
	Level              zerolog.Level
	PrettyPrintConsole bool
	// FilePath enables rotating file output in addition to stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ConfigureLogger sets up the global zerolog logger.
func ConfigureLogger(cfg LoggerConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(cfg.Level)

	var console io.Writer = os.Stderr
	if cfg.PrettyPrintConsole {
		console = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = "15:04:05"
		})
	}

	out := console
	if cfg.FilePath != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// LogFromContext returns the logger attached to ctx, or the global logger.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &log.Logger
	}

	return l
}

// WithOperation attaches a logger carrying a fresh operation_id plus the
// given string fields to ctx. It returns the id for callers that report it.
func WithOperation(ctx context.Context, fields map[string]string) (context.Context, string) {
	id := uuid.NewString()

	lctx := LogFromContext(ctx).With().Str("operation_id", id)
	for k, v := range fields {
		lctx = lctx.Str(k, v)
	}

	l := lctx.Logger()

	return l.WithContext(ctx), id
}
