// Package logging sets up the gateway's structured logger: level
// parsing, a colored handler for terminal output, and a plain one for
// file/pipe output, each switchable between a terse "simple" format
// and a timestamped "verbose" one.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel converts a string log level to slog.Level. An unknown
// value falls back to Warn, matching the teacher's own default.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// New builds the gateway's default logger. format is "simple" (level
// + message + attrs), "verbose" (timestamp + level + message + attrs),
// or anything else to fall back to slog's standard text layout.
// Color is applied automatically when output is a terminal.
func New(level slog.Level, output *os.File, format string) *slog.Logger {
	useColor := isTerminal(output)
	simple := format == "simple" || format == ""
	verbose := format == "verbose"

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String("level", "WARN")
			}
			return a
		},
	}

	baseHandler := slog.NewTextHandler(output, opts)

	var handler slog.Handler = baseHandler
	switch {
	case useColor && (simple || verbose):
		handler = &coloredTextHandler{handler: baseHandler, writer: output, simple: simple}
	case !useColor && simple:
		handler = &simpleTextHandler{handler: baseHandler, writer: output}
	}

	return slog.New(handler)
}

// OpenLogFile opens (creating if needed) an append-only log file.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

func isTerminal(file *os.File) bool {
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func normalizedLevel(level slog.Level) string {
	s := level.String()
	if s == "WARNING" {
		s = "WARN"
	}
	return strings.ToUpper(s)
}

func writeAttrs(buf *strings.Builder, record slog.Record) {
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
}

// coloredTextHandler renders ANSI-colored lines directly, for
// terminal output in "simple" or "verbose" format.
type coloredTextHandler struct {
	handler slog.Handler
	writer  io.Writer
	simple  bool
}

func (h *coloredTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *coloredTextHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder
	color, reset := levelColor(record.Level), "\033[0m"

	if !h.simple && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}
	buf.WriteString(color)
	buf.WriteString(normalizedLevel(record.Level))
	buf.WriteString(reset)
	buf.WriteString(" ")
	buf.WriteString(record.Message)
	writeAttrs(&buf, record)
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *coloredTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &coloredTextHandler{handler: h.handler.WithAttrs(attrs), writer: h.writer, simple: h.simple}
}

func (h *coloredTextHandler) WithGroup(name string) slog.Handler {
	return &coloredTextHandler{handler: h.handler.WithGroup(name), writer: h.writer, simple: h.simple}
}

// simpleTextHandler renders level + message + attrs with no
// timestamp and no color, for non-terminal "simple" format output.
type simpleTextHandler struct {
	handler slog.Handler
	writer  io.Writer
}

func (h *simpleTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *simpleTextHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder
	buf.WriteString(normalizedLevel(record.Level))
	buf.WriteString(" ")
	buf.WriteString(record.Message)
	writeAttrs(&buf, record)
	buf.WriteString("\n")

	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *simpleTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &simpleTextHandler{handler: h.handler.WithAttrs(attrs), writer: h.writer}
}

func (h *simpleTextHandler) WithGroup(name string) slog.Handler {
	return &simpleTextHandler{handler: h.handler.WithGroup(name), writer: h.writer}
}
