// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Options struct {
	Level  string
	Pretty bool
	// DevLog, when set, also writes every record at debug level to this file.
	DevLog string
	Out    io.Writer
}

// OptionsFromEnv reads MOIRE_LOG_LEVEL, MOIRE_LOG_PRETTY and DEV.
func OptionsFromEnv() Options {
	opts := Options{
		Level:  os.Getenv("MOIRE_LOG_LEVEL"),
		Pretty: isTruthy(os.Getenv("MOIRE_LOG_PRETTY")),
	}
	if strings.TrimSpace(os.Getenv("DEV")) != "" {
		opts.DevLog = "dev.log"
	}
	return opts
}

// Setup installs the default logger and returns a func closing the dev log.
func Setup(opts Options) (*slog.Logger, func() error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)
	var console slog.Handler
	if opts.Pretty {
		console = newPrettyHandler(out, level)
	} else {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}

	closer := func() error { return nil }
	handler := console
	if opts.DevLog != "" {
		file, err := os.Create(opts.DevLog)
		if err != nil {
			slog.New(console).Error("open log file", "path", opts.DevLog, "err", err)
		} else {
			_, _ = fmt.Fprintf(file, "=== moire dev log start %s ===\n", time.Now().Format(time.RFC3339))
			fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
			handler = &teeHandler{handlers: []slog.Handler{console, fileHandler}}
			closer = file.Close
		}
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer
}

func ParseLevel(raw string) slog.Leveler {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}
	return level
}

func isTruthy(v string) bool {
	return strings.EqualFold(v, "1") || strings.EqualFold(v, "true")
}

type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range t.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		out = append(out, h.WithAttrs(attrs))
	}
	return &teeHandler{handlers: out}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		out = append(out, h.WithGroup(name))
	}
	return &teeHandler{handlers: out}
}
